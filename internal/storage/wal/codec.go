package wal

import (
	"encoding/base64"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"hash/crc32"

	"github.com/epicenterhq/epicenter-go/pkg/crypto/adaptive"
)

type wirePayload struct {
	Timestamp int64  `json:"ts"`
	Namespace string `json:"ns"`
	Key       string `json:"key"`

	Value json.RawMessage `json:"value,omitempty"`

	// EncryptedValue is base64 of adaptive.Cipher.Encrypt(valueJSON).
	EncryptedValue string `json:"enc_value,omitempty"`
}

func encodeEntryFrame(e *Entry, cipher adaptive.Cipher) ([]byte, error) {
	if e == nil {
		return nil, fmt.Errorf("wal: entry is nil")
	}
	if e.OpType == OpTypeUnspecified {
		return nil, ErrInvalidEntryType
	}
	if e.Record == nil {
		return nil, fmt.Errorf("wal: missing record for op %d", e.OpType)
	}

	p := wirePayload{
		Timestamp: e.Timestamp,
		Namespace: e.Record.Namespace,
		Key:       e.Record.Key,
	}

	if e.OpType == OpTypeSet {
		if cipher == nil {
			p.Value = e.Record.Value
		} else {
			encrypted, err := cipher.Encrypt(e.Record.Value, nil)
			if err != nil {
				return nil, fmt.Errorf("wal: encrypt value: %w", err)
			}
			p.EncryptedValue = base64.StdEncoding.EncodeToString(encrypted)
		}
	}

	payload, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("wal: marshal payload: %w", err)
	}

	typeByte := []byte{byte(e.OpType)}
	crc := crc32.ChecksumIEEE(append(typeByte, payload...))

	// Length = CRC(4) + Type(1) + Payload.
	length := uint32(4 + 1 + len(payload))
	if length < 5 {
		return nil, ErrCorruptedEntry
	}

	out := make([]byte, 0, 4+int(length))
	var header [4]byte
	binary.BigEndian.PutUint32(header[:], length)
	out = append(out, header[:]...)

	var crcBuf [4]byte
	binary.BigEndian.PutUint32(crcBuf[:], crc)
	out = append(out, crcBuf[:]...)

	out = append(out, typeByte...)
	out = append(out, payload...)
	return out, nil
}

func decodeEntryFrame(frame []byte, cipher adaptive.Cipher) (*Entry, error) {
	// Frame layout: [crc32:4][type:1][payload...]
	if len(frame) < 5 {
		return nil, ErrCorruptedEntry
	}

	wantCRC := binary.BigEndian.Uint32(frame[:4])
	typeByte := frame[4]
	payload := frame[5:]

	gotCRC := crc32.ChecksumIEEE(append([]byte{typeByte}, payload...))
	if gotCRC != wantCRC {
		return nil, ErrChecksumMismatch
	}

	var p wirePayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return nil, fmt.Errorf("wal: unmarshal payload: %w", err)
	}

	op := OpType(typeByte)
	switch op {
	case OpTypeSet, OpTypeDelete:
	default:
		return nil, ErrInvalidEntryType
	}

	out := &Entry{
		OpType:    op,
		Timestamp: p.Timestamp,
		Record: &Record{
			Namespace: p.Namespace,
			Key:       p.Key,
			Ts:        p.Timestamp,
		},
	}

	if op == OpTypeDelete {
		return out, nil
	}

	if p.Value != nil {
		out.Record.Value = p.Value
		return out, nil
	}

	if p.EncryptedValue == "" {
		return nil, fmt.Errorf("wal: missing value payload")
	}
	if cipher == nil {
		return nil, fmt.Errorf("wal: encrypted entry requires cipher")
	}

	ciphertext, err := base64.StdEncoding.DecodeString(p.EncryptedValue)
	if err != nil {
		return nil, fmt.Errorf("wal: decode encrypted value: %w", err)
	}

	plain, err := cipher.Decrypt(ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("wal: decrypt value: %w", err)
	}
	out.Record.Value = json.RawMessage(plain)
	return out, nil
}
