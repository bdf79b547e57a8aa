package version

import (
	"encoding/binary"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/vidardb/vidardb-engine/errs"
	"github.com/vidardb/vidardb-engine/internal/crc"
)

// magicText/magicVersion tag a manifest file, mirroring the teacher's
// own MagicText/MagicVersion header (And-fish-kvDB/utils/const.go),
// generalized from the teacher's fixed 4-byte ASCII tag to a form that
// also carries a version number for future format changes.
var magicText = [4]byte{'V', 'D', 'B', 'M'}

const magicVersion = uint32(1)

func manifestFileName(dir string, number uint64) string {
	return filepath.Join(dir, "MANIFEST-"+formatFileNumber(number))
}

func currentFileName(dir string) string {
	return filepath.Join(dir, "CURRENT")
}

func formatFileNumber(n uint64) string {
	return strconv.FormatUint(n, 10)
}

// ManifestWriter appends length+masked-CRC32C framed Edit records to a
// single manifest file, following the teacher's own append+rename
// framing technique in file/manifet.go's addChanges/helpRewrite, minus
// the protobuf payload it could not reuse (see the package doc in edit.go).
type ManifestWriter struct {
	file *os.File
}

func CreateManifest(dir string, number uint64) (*ManifestWriter, error) {
	f, err := os.OpenFile(manifestFileName(dir, number), os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return nil, errs.Wrap(errs.KindIOError, err, "create manifest file")
	}
	var header [8]byte
	copy(header[:4], magicText[:])
	binary.LittleEndian.PutUint32(header[4:], magicVersion)
	if _, err := f.Write(header[:]); err != nil {
		f.Close()
		return nil, errs.Wrap(errs.KindIOError, err, "write manifest header")
	}
	return &ManifestWriter{file: f}, nil
}

func OpenManifestForAppend(dir string, number uint64) (*ManifestWriter, error) {
	f, err := os.OpenFile(manifestFileName(dir, number), os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, errs.Wrap(errs.KindIOError, err, "open manifest file for append")
	}
	return &ManifestWriter{file: f}, nil
}

// Append writes one framed record: 4-byte length, 4-byte masked
// CRC32C, payload.
func (w *ManifestWriter) Append(edit *Edit) error {
	payload := edit.Encode()
	var frame []byte
	var lenBuf [4]byte
	binary.LittleEndian.PutUint32(lenBuf[:], uint32(len(payload)))
	frame = append(frame, lenBuf[:]...)
	var crcBuf [4]byte
	binary.LittleEndian.PutUint32(crcBuf[:], crc.Mask(crc.Value(payload)))
	frame = append(frame, crcBuf[:]...)
	frame = append(frame, payload...)
	if _, err := w.file.Write(frame); err != nil {
		return errs.Wrap(errs.KindIOError, err, "append manifest record")
	}
	return w.file.Sync()
}

func (w *ManifestWriter) Close() error { return w.file.Close() }

// SetCurrent atomically points CURRENT at the given manifest number,
// mirroring how the teacher commits a manifest switch (write to a temp
// file, then os.Rename) so a crash never leaves CURRENT pointing at a
// manifest that does not exist.
func SetCurrent(dir string, number uint64) error {
	tmp := currentFileName(dir) + ".tmp"
	name := filepath.Base(manifestFileName(dir, number))
	if err := os.WriteFile(tmp, []byte(name+"\n"), 0644); err != nil {
		return errs.Wrap(errs.KindIOError, err, "write CURRENT temp file")
	}
	if err := os.Rename(tmp, currentFileName(dir)); err != nil {
		return errs.Wrap(errs.KindIOError, err, "rename CURRENT into place")
	}
	return nil
}

// CurrentManifestPath reads CURRENT and returns the manifest file path
// it names.
func CurrentManifestPath(dir string) (string, error) {
	data, err := os.ReadFile(currentFileName(dir))
	if err != nil {
		return "", errs.Wrap(errs.KindIOError, err, "read CURRENT")
	}
	name := strings.TrimSpace(string(data))
	if name == "" {
		return "", errs.New(errs.KindCorruption, "CURRENT file is empty")
	}
	return filepath.Join(dir, name), nil
}

// ReplayManifest reads every framed record from path in order, applying
// fn to each decoded Edit; fn typically folds the edit into a Version
// under construction.
func ReplayManifest(path string, fn func(*Edit) error) error {
	f, err := os.Open(path)
	if err != nil {
		return errs.Wrap(errs.KindIOError, err, "open manifest for replay")
	}
	defer f.Close()

	var header [8]byte
	if _, err := io.ReadFull(f, header[:]); err != nil {
		return errs.Wrap(errs.KindCorruption, err, "read manifest header")
	}
	if string(header[:4]) != string(magicText[:]) {
		return errs.New(errs.KindCorruption, "manifest file missing magic header")
	}

	for {
		var lenBuf, crcBuf [4]byte
		if _, err := io.ReadFull(f, lenBuf[:]); err != nil {
			if err == io.EOF {
				return nil
			}
			return errs.Wrap(errs.KindCorruption, err, "read manifest record length")
		}
		if _, err := io.ReadFull(f, crcBuf[:]); err != nil {
			return errs.Wrap(errs.KindCorruption, err, "read manifest record crc")
		}
		length := binary.LittleEndian.Uint32(lenBuf[:])
		payload := make([]byte, length)
		if _, err := io.ReadFull(f, payload); err != nil {
			return errs.Wrap(errs.KindCorruption, err, "read manifest record payload")
		}
		if crc.Mask(crc.Value(payload)) != binary.LittleEndian.Uint32(crcBuf[:]) {
			return errs.New(errs.KindCorruption, "manifest record checksum mismatch")
		}
		edit, err := Decode(payload)
		if err != nil {
			return err
		}
		if err := fn(edit); err != nil {
			return err
		}
	}
}
