// Package source turns the source declared by a recipe into a tar stream
// that can be unpacked into a build environment.
//
// A source is either an http(s) URL of a tarball or a path on the host,
// resolved against the recipe's directory when relative. Host paths may
// name a tarball or a directory; a directory is archived as is. Tarballs
// are decompressed according to their extension:
//
//	.tar                plain
//	.tar.gz, .tgz       gzip
//	.tar.xz, .txz       xz
//	.tar.zst, .tzst     zstd
//	.tar.bz2, .tbz2     bzip2
//
// Downloads are retried on connection errors and 5xx responses.
//
// Example usage:
//
//	f := source.NewFetcher()
//	rc, err := f.Open(ctx, r.Metadata.Source, r.Dir)
//	if err != nil {
//	    return err
//	}
//	defer rc.Close()
//	err = b.Extract(ctx, h, dirs.Build, rc)
package source
