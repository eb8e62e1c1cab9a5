package snapshot

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/klauspost/compress/zstd"

	"github.com/vk/bootrt/internal/ctxlog"
)

// Record is one persisted snapshot: the fingerprint it was produced under
// plus the opaque serialized memory image.
type Record struct {
	Fingerprint string
	Image       []byte
}

// magic and formatVersion frame the stored bytes. A version bump turns old
// records into misses instead of decode errors.
var magic = []byte("BRTSNAP\x00")

const formatVersion uint16 = 1

// Cache validates and (de)serializes snapshot records against a Storage.
// Every failure mode on the read path is absorbed as a miss; the cold boot
// path is always a correct fallback.
type Cache struct {
	Storage Storage
}

// TryLoad returns the record stored under fingerprint, or ok=false on any
// miss: absent record, torn frame, version or fingerprint mismatch. A
// mismatching record is ignored, not deleted; the fingerprint that wrote
// it may still be in use by another deployment sharing the storage.
func (c *Cache) TryLoad(ctx context.Context, fingerprint string) (*Record, bool) {
	logger := ctxlog.FromContext(ctx)
	if c == nil || c.Storage == nil {
		return nil, false
	}
	raw, err := c.Storage.Get(ctx, fingerprint)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			logger.Debug("Snapshot read failed, treating as miss.", "error", err)
		}
		return nil, false
	}
	rec, err := decode(raw)
	if err != nil {
		logger.Debug("Snapshot invalid, treating as miss.", "error", err)
		return nil, false
	}
	if rec.Fingerprint != fingerprint {
		logger.Debug("Snapshot fingerprint mismatch, treating as miss.",
			"stored", rec.Fingerprint, "want", fingerprint)
		return nil, false
	}
	return rec, true
}

// Store persists a record under its fingerprint, overwriting any prior
// record for that key. Errors are returned for the caller to log; store
// failures are never fatal to a boot.
func (c *Cache) Store(ctx context.Context, rec *Record) error {
	if c == nil || c.Storage == nil {
		return errors.New("no snapshot storage configured")
	}
	raw, err := encode(rec)
	if err != nil {
		return err
	}
	return c.Storage.Put(ctx, rec.Fingerprint, raw)
}

// encode frames a record: magic, version, fingerprint, zstd image.
func encode(rec *Record) ([]byte, error) {
	var buf bytes.Buffer
	buf.Write(magic)
	if err := binary.Write(&buf, binary.LittleEndian, formatVersion); err != nil {
		return nil, err
	}
	fp := []byte(rec.Fingerprint)
	if err := binary.Write(&buf, binary.LittleEndian, uint16(len(fp))); err != nil {
		return nil, err
	}
	buf.Write(fp)

	enc, err := zstd.NewWriter(nil)
	if err != nil {
		return nil, fmt.Errorf("creating zstd writer: %w", err)
	}
	defer enc.Close()
	buf.Write(enc.EncodeAll(rec.Image, nil))
	return buf.Bytes(), nil
}

func decode(raw []byte) (*Record, error) {
	r := bytes.NewReader(raw)
	head := make([]byte, len(magic))
	if _, err := r.Read(head); err != nil || !bytes.Equal(head, magic) {
		return nil, errors.New("bad snapshot magic")
	}
	var version uint16
	if err := binary.Read(r, binary.LittleEndian, &version); err != nil {
		return nil, err
	}
	if version != formatVersion {
		return nil, fmt.Errorf("unsupported snapshot version %d", version)
	}
	var fpLen uint16
	if err := binary.Read(r, binary.LittleEndian, &fpLen); err != nil {
		return nil, err
	}
	fp := make([]byte, fpLen)
	if _, err := r.Read(fp); err != nil {
		return nil, err
	}
	compressed := make([]byte, r.Len())
	if _, err := r.Read(compressed); err != nil {
		return nil, err
	}

	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("creating zstd reader: %w", err)
	}
	defer dec.Close()
	image, err := dec.DecodeAll(compressed, nil)
	if err != nil {
		return nil, fmt.Errorf("decompressing snapshot image: %w", err)
	}
	return &Record{Fingerprint: string(fp), Image: image}, nil
}
