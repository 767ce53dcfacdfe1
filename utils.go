package zenodo

import (
	"crypto/md5"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"os"
)

// readJSON reads and unmarshals JSON from a reader
func readJSON(r io.Reader, v interface{}) error {
	return json.NewDecoder(r).Decode(v)
}

// progressReader wraps an io.Reader to track transfer progress
type progressReader struct {
	reader     io.Reader
	total      int64
	current    int64
	progressFn func(transferred, total int64)
}

func (pr *progressReader) Read(p []byte) (int, error) {
	n, err := pr.reader.Read(p)
	pr.current += int64(n)
	if pr.progressFn != nil {
		pr.progressFn(pr.current, pr.total)
	}
	return n, err
}

// FileChecksums computes the MD5 and SHA256 digests of a local file in
// one streaming pass
func FileChecksums(path string) (md5sum, sha256sum string, err error) {
	f, err := os.Open(path)
	if err != nil {
		return "", "", &NotFoundError{Resource: "file", ID: path}
	}
	defer f.Close()

	md5Hash := md5.New()
	shaHash := sha256.New()
	if _, err := io.Copy(io.MultiWriter(md5Hash, shaHash), f); err != nil {
		return "", "", err
	}
	return hex.EncodeToString(md5Hash.Sum(nil)), hex.EncodeToString(shaHash.Sum(nil)), nil
}
