package service

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	appErrors "github.com/activmap/activmap-api/pkg/errors"
)

type codeStore interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// VerificationService issues and checks short-lived one-time codes.
// Codes live in Redis with a TTL, so expiry is handled by the store
// rather than an unbounded in-process map.
type VerificationService struct {
	codes      codeStore
	codeLength int
	ttl        time.Duration
	logger     *zap.Logger
}

// NewVerificationService constructs the service.
func NewVerificationService(codes codeStore, codeLength int, ttl time.Duration, logger *zap.Logger) *VerificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if codeLength <= 0 {
		codeLength = 6
	}
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &VerificationService{codes: codes, codeLength: codeLength, ttl: ttl, logger: logger}
}

// SendCode generates a code for the recipient and stores it with the
// configured TTL. Delivery is delegated to an external sender; here the
// issuance is logged only.
func (s *VerificationService) SendCode(ctx context.Context, recipient string) error {
	code, err := generateCode(s.codeLength)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to generate verification code")
	}
	if err := s.codes.Set(ctx, verificationKey(recipient), code, s.ttl); err != nil {
		return appErrors.Wrap(err, appErrors.ErrPersistence.Code, appErrors.ErrPersistence.Status, "failed to store verification code")
	}
	s.logger.Info("verification code issued", zap.String("recipient", recipient))
	return nil
}

// VerifyCode checks the supplied code. A match consumes the stored code;
// a mismatch leaves it in place for another attempt until the TTL fires.
func (s *VerificationService) VerifyCode(ctx context.Context, recipient, code string) (bool, error) {
	var stored string
	if err := s.codes.Get(ctx, verificationKey(recipient), &stored); err != nil {
		if errors.Is(err, appErrors.ErrCacheMiss) {
			return false, nil
		}
		return false, appErrors.Wrap(err, appErrors.ErrPersistence.Code, appErrors.ErrPersistence.Status, "failed to load verification code")
	}
	if stored != code {
		return false, nil
	}
	if err := s.codes.Delete(ctx, verificationKey(recipient)); err != nil {
		s.logger.Warn("failed to consume verification code", zap.Error(err))
	}
	return true, nil
}

func verificationKey(recipient string) string {
	return fmt.Sprintf("verification:%s", recipient)
}

func generateCode(length int) (string, error) {
	const digits = "0123456789"
	buf := make([]byte, length)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	for i, b := range buf {
		buf[i] = digits[int(b)%len(digits)]
	}
	return string(buf), nil
}
