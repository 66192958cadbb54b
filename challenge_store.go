package flareauth

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/redis/go-redis/v9"
)

const challengeRecordVersion1 = 1

type challengeStatus uint8

const (
	challengePending challengeStatus = iota
	challengeSent
)

// challengeRecord is the stored shape of an in-flight step-up challenge.
// There is at most one per user; the Redis key is derived from the user ID,
// so creating a new challenge supersedes the previous one atomically.
// Terminal challenges (verified, expired, exhausted-and-lapsed) are deleted,
// never archived.
type challengeRecord struct {
	ChallengeID string
	UserID      string
	Method      TwoFactorMethod
	// CodeHash is sha256 of the delivered numeric code. Zero for the
	// authenticator method, where matching delegates to TOTP.
	CodeHash  [32]byte
	CreatedAt int64
	ExpiresAt int64
	// Attempts counts verify calls consumed so far. It only grows; reaching
	// the configured maximum makes the challenge exhausted.
	Attempts uint16
	Status   challengeStatus
}

// challengeOutcome is the non-error result of a verify call.
type challengeOutcome struct {
	Valid             bool
	RemainingAttempts int
}

// challengeMatcher reports whether the presented code matches the stored
// challenge. It must be pure: the store may call it more than once while the
// compare-and-swap loop retries.
type challengeMatcher func(record *challengeRecord) bool

type challengeStore struct {
	redis  *redis.Client
	prefix string
}

func newChallengeStore(redisClient *redis.Client, prefix string) *challengeStore {
	return &challengeStore{redis: redisClient, prefix: prefix}
}

func (s *challengeStore) key(userID string) string {
	return s.prefix + ":ch:" + userID
}

// Create stores a fresh challenge for the user, discarding any prior one.
func (s *challengeStore) Create(ctx context.Context, record *challengeRecord, ttl time.Duration) error {
	encoded, err := encodeChallengeRecord(record)
	if err != nil {
		return err
	}
	if err := s.redis.Set(ctx, s.key(record.UserID), encoded, ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrChallengeUnavailable, err)
	}
	return nil
}

// Get loads the user's active challenge. Expired records are deleted on read.
func (s *challengeStore) Get(ctx context.Context, userID string) (*challengeRecord, error) {
	data, err := s.redis.Get(ctx, s.key(userID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrChallengeNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrChallengeUnavailable, err)
	}
	record, err := decodeChallengeRecord(data)
	if err != nil {
		return nil, err
	}
	if time.Now().Unix() > record.ExpiresAt {
		_, _ = s.redis.Del(ctx, s.key(userID)).Result()
		return nil, ErrChallengeExpired
	}
	return record, nil
}

// MarkSent transitions Pending to Sent once the notification task is durably
// enqueued. A missing or superseded challenge is ignored: the transition is
// advisory and must not fail the signin flow.
func (s *challengeStore) MarkSent(ctx context.Context, userID, challengeID string) error {
	const maxRetries = 4
	key := s.key(userID)

	for i := 0; i < maxRetries; i++ {
		err := s.redis.Watch(ctx, func(tx *redis.Tx) error {
			data, err := tx.Get(ctx, key).Bytes()
			if err != nil {
				return err
			}
			record, err := decodeChallengeRecord(data)
			if err != nil {
				return err
			}
			if record.ChallengeID != challengeID || record.Status != challengePending {
				return nil
			}
			if time.Now().Unix() > record.ExpiresAt {
				return nil
			}

			record.Status = challengeSent
			ttl := time.Until(time.Unix(record.ExpiresAt, 0))
			if ttl <= 0 {
				return nil
			}
			updated, err := encodeChallengeRecord(record)
			if err != nil {
				return err
			}
			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.Set(ctx, key, updated, ttl)
				return nil
			})
			return err
		}, key)

		if err == redis.TxFailedErr {
			continue
		}
		if err != nil {
			if errors.Is(err, redis.Nil) {
				return nil
			}
			return fmt.Errorf("%w: %v", ErrChallengeUnavailable, err)
		}
		return nil
	}
	return nil
}

// Verify runs one verification attempt under an optimistic transaction so a
// concurrent supersede or a second verify cannot double-spend the attempt
// budget. Attempt accounting is strict: expiry always wins over remaining
// attempts, an exhausted challenge rejects even a correct code, and a
// matched challenge is deleted so it can never verify twice.
func (s *challengeStore) Verify(
	ctx context.Context,
	userID string,
	match challengeMatcher,
	maxAttempts int,
) (challengeOutcome, error) {
	const maxRetries = 4
	key := s.key(userID)

	for i := 0; i < maxRetries; i++ {
		var outcome challengeOutcome

		err := s.redis.Watch(ctx, func(tx *redis.Tx) error {
			data, err := tx.Get(ctx, key).Bytes()
			if err != nil {
				return err
			}
			record, err := decodeChallengeRecord(data)
			if err != nil {
				return err
			}

			if time.Now().Unix() > record.ExpiresAt {
				_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
					pipe.Del(ctx, key)
					return nil
				})
				if err != nil {
					return err
				}
				return ErrChallengeExpired
			}
			if int(record.Attempts) >= maxAttempts {
				return ErrChallengeExhausted
			}

			if !match(record) {
				record.Attempts++
				remaining := maxAttempts - int(record.Attempts)
				ttl := time.Until(time.Unix(record.ExpiresAt, 0))
				if ttl <= 0 {
					_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
						pipe.Del(ctx, key)
						return nil
					})
					if err != nil {
						return err
					}
					return ErrChallengeExpired
				}
				updated, err := encodeChallengeRecord(record)
				if err != nil {
					return err
				}
				_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
					pipe.Set(ctx, key, updated, ttl)
					return nil
				})
				if err != nil {
					return err
				}
				outcome = challengeOutcome{Valid: false, RemainingAttempts: remaining}
				return nil
			}

			// Verified is terminal: the record is destroyed so the same
			// challenge can never validate again.
			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.Del(ctx, key)
				return nil
			})
			if err != nil {
				return err
			}
			outcome = challengeOutcome{
				Valid:             true,
				RemainingAttempts: maxAttempts - int(record.Attempts),
			}
			return nil
		}, key)

		if err == redis.TxFailedErr {
			continue
		}
		if err != nil {
			switch {
			case errors.Is(err, redis.Nil):
				return challengeOutcome{}, ErrChallengeNotFound
			case errors.Is(err, ErrChallengeExpired), errors.Is(err, ErrChallengeExhausted):
				return challengeOutcome{}, err
			default:
				return challengeOutcome{}, fmt.Errorf("%w: %v", ErrChallengeUnavailable, err)
			}
		}
		return outcome, nil
	}

	return challengeOutcome{}, ErrChallengeNotFound
}

// Delete removes the user's challenge, if any. Idempotent.
func (s *challengeStore) Delete(ctx context.Context, userID string) error {
	if err := s.redis.Del(ctx, s.key(userID)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrChallengeUnavailable, err)
	}
	return nil
}

func encodeChallengeRecord(record *challengeRecord) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte(challengeRecordVersion1)
	buf.WriteByte(byte(record.Status))
	buf.WriteByte(methodToByte(record.Method))

	if err := binary.Write(&buf, binary.BigEndian, record.Attempts); err != nil {
		return nil, err
	}
	if err := binary.Write(&buf, binary.BigEndian, record.CreatedAt); err != nil {
		return nil, err
	}
	if err := binary.Write(&buf, binary.BigEndian, record.ExpiresAt); err != nil {
		return nil, err
	}

	if len(record.ChallengeID) > 65535 || len(record.UserID) > 65535 {
		return nil, errors.New("challenge record id length exceeded")
	}
	if err := binary.Write(&buf, binary.BigEndian, uint16(len(record.ChallengeID))); err != nil {
		return nil, err
	}
	buf.WriteString(record.ChallengeID)
	if err := binary.Write(&buf, binary.BigEndian, uint16(len(record.UserID))); err != nil {
		return nil, err
	}
	buf.WriteString(record.UserID)
	buf.Write(record.CodeHash[:])

	return buf.Bytes(), nil
}

func decodeChallengeRecord(data []byte) (*challengeRecord, error) {
	reader := bytes.NewReader(data)

	version, err := reader.ReadByte()
	if err != nil {
		return nil, err
	}
	if version != challengeRecordVersion1 {
		return nil, errors.New("invalid challenge record version")
	}

	status, err := reader.ReadByte()
	if err != nil {
		return nil, err
	}
	methodByte, err := reader.ReadByte()
	if err != nil {
		return nil, err
	}
	method, err := methodFromByte(methodByte)
	if err != nil {
		return nil, err
	}

	record := &challengeRecord{
		Status: challengeStatus(status),
		Method: method,
	}
	if err := binary.Read(reader, binary.BigEndian, &record.Attempts); err != nil {
		return nil, err
	}
	if err := binary.Read(reader, binary.BigEndian, &record.CreatedAt); err != nil {
		return nil, err
	}
	if err := binary.Read(reader, binary.BigEndian, &record.ExpiresAt); err != nil {
		return nil, err
	}

	var idLen uint16
	if err := binary.Read(reader, binary.BigEndian, &idLen); err != nil {
		return nil, err
	}
	id := make([]byte, idLen)
	if _, err := io.ReadFull(reader, id); err != nil {
		return nil, err
	}
	record.ChallengeID = string(id)

	var userLen uint16
	if err := binary.Read(reader, binary.BigEndian, &userLen); err != nil {
		return nil, err
	}
	user := make([]byte, userLen)
	if _, err := io.ReadFull(reader, user); err != nil {
		return nil, err
	}
	record.UserID = string(user)

	if _, err := io.ReadFull(reader, record.CodeHash[:]); err != nil {
		return nil, err
	}

	return record, nil
}

func methodToByte(m TwoFactorMethod) byte {
	switch m {
	case MethodSMS:
		return 1
	case MethodAuthenticator:
		return 2
	default:
		return 0
	}
}

func methodFromByte(b byte) (TwoFactorMethod, error) {
	switch b {
	case 0:
		return MethodEmail, nil
	case 1:
		return MethodSMS, nil
	case 2:
		return MethodAuthenticator, nil
	default:
		return "", errors.New("invalid challenge method byte")
	}
}
