package flareauth

import (
	"bytes"
	"context"
	"crypto/subtle"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/redis/go-redis/v9"
)

const deviceRecordVersion1 = 1

// deviceContextStore keeps the single DeviceContext record per user. The
// record is a trust anchor overwritten on every full authentication, so a
// plain SET is sufficient; no transactional update is needed here.
type deviceContextStore struct {
	redis  *redis.Client
	prefix string
}

func newDeviceContextStore(redisClient *redis.Client, prefix string) *deviceContextStore {
	return &deviceContextStore{redis: redisClient, prefix: prefix}
}

func (s *deviceContextStore) key(userID string) string {
	return s.prefix + ":dev:" + userID
}

// GetDeviceContext reports absence through the boolean, matching the store
// contract used everywhere else in this package.
func (s *deviceContextStore) GetDeviceContext(ctx context.Context, userID string) (DeviceContext, bool, error) {
	data, err := s.redis.Get(ctx, s.key(userID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return DeviceContext{}, false, nil
		}
		return DeviceContext{}, false, fmt.Errorf("%w: %v", ErrDeviceTrustUnavailable, err)
	}
	record, err := decodeDeviceContext(data)
	if err != nil {
		return DeviceContext{}, false, err
	}
	return record, true, nil
}

func (s *deviceContextStore) UpsertDeviceContext(ctx context.Context, record DeviceContext) error {
	encoded, err := encodeDeviceContext(record)
	if err != nil {
		return err
	}
	if err := s.redis.Set(ctx, s.key(record.UserID), encoded, 0).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrDeviceTrustUnavailable, err)
	}
	return nil
}

// deviceTrustEvaluator decides whether a sign-in attempt comes from a
// recognized device. It is read-only: recording the fingerprint after a
// completed authentication is the engine's job, not the evaluator's.
type deviceTrustEvaluator struct {
	store *deviceContextStore
}

func newDeviceTrustEvaluator(store *deviceContextStore) *deviceTrustEvaluator {
	return &deviceTrustEvaluator{store: store}
}

// IsTrusted returns true only when a DeviceContext exists for the user and
// its fingerprint exactly equals the presented one. No prior record, an
// absent presented fingerprint, or any difference all mean "not trusted",
// which forces step-up.
func (d *deviceTrustEvaluator) IsTrusted(ctx context.Context, userID string, fingerprint [32]byte, present bool) (bool, error) {
	if !present {
		return false, nil
	}
	stored, found, err := d.store.GetDeviceContext(ctx, userID)
	if err != nil {
		return false, err
	}
	if !found {
		return false, nil
	}
	return subtle.ConstantTimeCompare(stored.Fingerprint[:], fingerprint[:]) == 1, nil
}

func encodeDeviceContext(record DeviceContext) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte(deviceRecordVersion1)

	if err := binary.Write(&buf, binary.BigEndian, record.LastSeenAt.Unix()); err != nil {
		return nil, err
	}
	if len(record.UserID) > 65535 || len(record.IP) > 65535 {
		return nil, errors.New("device context field length exceeded")
	}
	if err := binary.Write(&buf, binary.BigEndian, uint16(len(record.UserID))); err != nil {
		return nil, err
	}
	buf.WriteString(record.UserID)
	if err := binary.Write(&buf, binary.BigEndian, uint16(len(record.IP))); err != nil {
		return nil, err
	}
	buf.WriteString(record.IP)
	buf.Write(record.Fingerprint[:])

	return buf.Bytes(), nil
}

func decodeDeviceContext(data []byte) (DeviceContext, error) {
	reader := bytes.NewReader(data)

	version, err := reader.ReadByte()
	if err != nil {
		return DeviceContext{}, err
	}
	if version != deviceRecordVersion1 {
		return DeviceContext{}, errors.New("invalid device context version")
	}

	var lastSeen int64
	if err := binary.Read(reader, binary.BigEndian, &lastSeen); err != nil {
		return DeviceContext{}, err
	}
	record := DeviceContext{LastSeenAt: time.Unix(lastSeen, 0)}

	var userLen uint16
	if err := binary.Read(reader, binary.BigEndian, &userLen); err != nil {
		return DeviceContext{}, err
	}
	user := make([]byte, userLen)
	if _, err := io.ReadFull(reader, user); err != nil {
		return DeviceContext{}, err
	}
	record.UserID = string(user)

	var ipLen uint16
	if err := binary.Read(reader, binary.BigEndian, &ipLen); err != nil {
		return DeviceContext{}, err
	}
	ip := make([]byte, ipLen)
	if _, err := io.ReadFull(reader, ip); err != nil {
		return DeviceContext{}, err
	}
	record.IP = string(ip)

	if _, err := io.ReadFull(reader, record.Fingerprint[:]); err != nil {
		return DeviceContext{}, err
	}

	return record, nil
}
