//go:build property
// +build property

package images

import (
	"reflect"
	"strings"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

func genImageName() gopter.Gen {
	stems := gen.OneConstOf("logo", "chart final", "Team Photo", "a", "diagram-2")
	exts := gen.OneConstOf(".png", ".PNG", ".jpg", ".Jpeg", ".svg", "")
	return gopter.CombineGens(stems, exts).Map(func(v []interface{}) string {
		return v[0].(string) + v[1].(string)
	})
}

func TestPathVariantProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("variants are deterministic", prop.ForAll(
		func(name string) bool {
			return reflect.DeepEqual(PathVariants(name), PathVariants(name))
		},
		genImageName(),
	))

	properties.Property("variants are unique and start with the bare name", prop.ForAll(
		func(name string) bool {
			variants := PathVariants(name)
			if len(variants) == 0 || variants[0] != name {
				return false
			}
			seen := make(map[string]bool, len(variants))
			for _, v := range variants {
				if seen[v] {
					return false
				}
				seen[v] = true
			}
			return true
		},
		genImageName(),
	))

	properties.Property("every variant resolves to the image", prop.ForAll(
		func(name string) bool {
			index := NewIndex()
			img := &EmbeddedImage{Name: name, DataURI: "data:image/png;base64,AA=="}
			index.Add(img)
			for _, v := range PathVariants(name) {
				got, ok := index.Lookup(v)
				if !ok || got != img {
					return false
				}
			}
			return true
		},
		genImageName(),
	))

	properties.Property("spaces get escaped forms", prop.ForAll(
		func(name string) bool {
			if !strings.Contains(name, " ") {
				return true
			}
			for _, v := range PathVariants(name) {
				if strings.Contains(v, "%20") {
					return true
				}
			}
			return false
		},
		genImageName(),
	))

	properties.TestingRun(t)
}
