// Package artifact collects the files a build installed into its output
// directory and hands them to package writers.
//
// [Collect] reads the output directory of a build environment as a tar
// stream, drops entries matching the recipe's exclude patterns, records
// every remaining entry in a [Manifest] and optionally extracts the files
// into a staging directory on the host. Regular files carry a sha256
// digest of their content.
//
// Exclude patterns are glob patterns matched against the slash separated
// path relative to the output directory and against each of its parent
// directories, so excluding a directory removes everything below it.
// Patterns without a slash match any single path component.
//
// Example usage:
//
//	src := artifact.SourceFunc(func(ctx context.Context, w io.Writer) error {
//	    return b.Archive(ctx, h, dirs.Out, w)
//	})
//	m, err := artifact.Collect(ctx, src, artifact.Options{
//	    Exclude:  []string{"share/doc", "*.la"},
//	    StageDir: "/var/tmp/stage/debian10",
//	})
//	if err != nil {
//	    return err
//	}
//
//	w := artifact.DirWriter{Dir: "out"}
//	err = w.Write(ctx, target, m, r.Metadata)
package artifact
