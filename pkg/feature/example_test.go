package feature_test

import (
	"fmt"

	"github.com/matzehuels/gadgethost/pkg/feature"
)

func ExampleRegistry_Resolve() {
	reg, err := feature.Build([]*feature.Descriptor{
		{Name: "core"},
		{Name: "core.io", Dependencies: []string{"core"}},
		{Name: "foo", Dependencies: []string{"core.io"}},
	})
	if err != nil {
		fmt.Println(err)
		return
	}

	res := reg.Resolve([]string{"foo", "bar"})
	fmt.Println(res.Found)
	fmt.Println(res.Missing)
	fmt.Println(reg.Resolve(nil).Found)
	// Output:
	// [core core.io foo]
	// [bar]
	// [core core.io]
}
