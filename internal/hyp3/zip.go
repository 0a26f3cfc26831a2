package hyp3

import (
	"archive/zip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// Unzip extracts an archive into destDir, preserving the archive's
// internal layout. Entries escaping destDir are rejected.
func Unzip(src, destDir string) error {
	r, err := zip.OpenReader(src)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", src, err)
	}
	defer r.Close()

	for _, f := range r.File {
		target := filepath.Join(destDir, f.Name)
		if !strings.HasPrefix(target, filepath.Clean(destDir)+string(os.PathSeparator)) {
			return fmt.Errorf("archive %s contains unsafe path %s", src, f.Name)
		}

		if f.FileInfo().IsDir() {
			if err := os.MkdirAll(target, 0o755); err != nil {
				return err
			}
			continue
		}
		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return err
		}
		if err := extractFile(f, target); err != nil {
			return fmt.Errorf("failed to extract %s from %s: %w", f.Name, src, err)
		}
	}
	return nil
}

func extractFile(f *zip.File, target string) error {
	in, err := f.Open()
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(target)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

// ExtractAll unzips every archive under srcDir into destDir.
func ExtractAll(srcDir, destDir string) error {
	archives, err := filepath.Glob(filepath.Join(srcDir, "*.zip"))
	if err != nil {
		return fmt.Errorf("failed to scan %s: %w", srcDir, err)
	}
	if len(archives) == 0 {
		return fmt.Errorf("no zip archives found in %s", srcDir)
	}
	for _, a := range archives {
		if err := Unzip(a, destDir); err != nil {
			return err
		}
	}
	return nil
}
