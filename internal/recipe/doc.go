// Package recipe holds the in-memory model of a package recipe.
//
// A [Recipe] describes one package: its metadata, the target images it is
// built for, custom environment variables, and up to three script stages
// (configure, build and install) made of shell steps. Steps may be limited
// to a subset of the targets through an image filter.
//
// Recipes are validated once, by [Recipe.Validate] or implicitly by [Load]
// and [Parse], and are never modified afterwards. A single *Recipe is shared
// by every concurrent build job, so nothing in this package mutates a recipe
// after construction and callers must not either.
//
// Example usage:
//
//	r, err := recipe.Load("recipe.yml")
//	if err != nil {
//	    return err
//	}
//	for _, t := range r.Targets {
//	    fmt.Println(t.Image, t.OS, t.Format)
//	}
package recipe
