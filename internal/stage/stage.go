// Package stage post-processes staged candidates before execution: carriage
// returns are stripped, a POSIX shell shebang is inserted when missing, and
// native binaries are detected and left untouched.
//
// Normalization is best-effort. Any internal error is logged and swallowed;
// a candidate that cannot be normalized is still handed to the executor.
package stage

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"golang.org/x/text/transform"

	"github.com/rescuekit/autorun/internal/script"
)

var elfMagic = []byte{0x7f, 'E', 'L', 'F'}

const defaultShebang = "#!/bin/sh\n"

// crStripper is a byte-level transform.Transformer that removes carriage
// returns. It works on bytes, not runes, so scripts containing invalid
// UTF-8 pass through unchanged apart from the CRs.
type crStripper struct {
	stripped int
}

func (s *crStripper) Transform(dst, src []byte, atEOF bool) (nDst, nSrc int, err error) {
	for nSrc < len(src) {
		if src[nSrc] == '\r' {
			nSrc++
			s.stripped++
			continue
		}
		if nDst == len(dst) {
			return nDst, nSrc, transform.ErrShortDst
		}
		dst[nDst] = src[nSrc]
		nDst++
		nSrc++
	}
	return nDst, nSrc, nil
}

func (s *crStripper) Reset() { s.stripped = 0 }

// Normalize rewrites the staged copy in place. ELF binaries are returned
// untouched. For text candidates it strips CR bytes and prepends the default
// shebang when the file does not start with "#!", logging one deprecation
// warning per applied rewrite. Errors never propagate.
func Normalize(s script.Staged) {
	if err := normalize(s); err != nil {
		slog.Debug("normalization skipped",
			"script", s.BaseName, "error", err)
	}
}

func normalize(s script.Staged) error {
	binary, err := isELF(s.LocalPath)
	if err != nil {
		return err
	}
	if binary {
		slog.Debug("native binary, leaving untouched", "script", s.BaseName)
		return nil
	}

	info, err := os.Stat(s.LocalPath)
	if err != nil {
		return err
	}

	src, err := os.Open(s.LocalPath)
	if err != nil {
		return err
	}
	defer src.Close()

	tmp, err := os.CreateTemp(filepath.Dir(s.LocalPath), s.BaseName+".norm-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	stripper := &crStripper{}
	reader := bufio.NewReader(transform.NewReader(src, stripper))

	head, err := reader.Peek(len("#!"))
	if err != nil && !errors.Is(err, io.EOF) {
		tmp.Close()
		return err
	}
	insertShebang := !bytes.Equal(head, []byte("#!"))

	if insertShebang {
		if _, err := tmp.WriteString(defaultShebang); err != nil {
			tmp.Close()
			return err
		}
	}
	if _, err := io.Copy(tmp, reader); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}

	if err := os.Chmod(tmp.Name(), info.Mode()); err != nil {
		return err
	}
	if err := os.Rename(tmp.Name(), s.LocalPath); err != nil {
		return err
	}

	if stripper.stripped > 0 {
		slog.Warn("deprecated line endings, carriage returns stripped",
			"script", s.BaseName, "bytes", stripper.stripped)
	}
	if insertShebang {
		slog.Warn("deprecated script without shebang, inserted default",
			"script", s.BaseName, "shebang", "#!/bin/sh")
	}
	return nil
}

// isELF reports whether the file starts with the ELF magic number.
func isELF(path string) (bool, error) {
	f, err := os.Open(path)
	if err != nil {
		return false, err
	}
	defer f.Close()

	head := make([]byte, len(elfMagic))
	n, err := io.ReadFull(f, head)
	if err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return false, nil
		}
		return false, fmt.Errorf("read header of %s: %w", path, err)
	}
	return bytes.Equal(head[:n], elfMagic), nil
}
