package challenge

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

type BrokerSuite struct {
	suite.Suite
	broker *Broker
}

func (s *BrokerSuite) SetupTest() {
	s.broker = NewBroker(WithCleanupInterval(5 * time.Millisecond))
}

func (s *BrokerSuite) TearDownTest() {
	s.broker.Close()
}

func (s *BrokerSuite) TestGenerateAndValidate() {
	ctx := context.Background()

	c, err := s.broker.Generate(ctx, "verifier.example.edu")
	require.NoError(s.T(), err)
	assert.NotEmpty(s.T(), c.Token)
	assert.True(s.T(), c.ExpiresAt.After(time.Now()))

	assert.True(s.T(), s.broker.Validate(ctx, c.Token, "verifier.example.edu"))
}

func (s *BrokerSuite) TestValidateConsumesToken() {
	ctx := context.Background()

	c, err := s.broker.Generate(ctx, "verifier.example.edu")
	require.NoError(s.T(), err)

	assert.True(s.T(), s.broker.Validate(ctx, c.Token, "verifier.example.edu"))
	// Second use of the same token fails: consumed exactly once.
	assert.False(s.T(), s.broker.Validate(ctx, c.Token, "verifier.example.edu"))
}

func (s *BrokerSuite) TestValidateRejectsUnknownToken() {
	assert.False(s.T(), s.broker.Validate(context.Background(), "nope", "verifier.example.edu"))
}

func (s *BrokerSuite) TestValidateRejectsDomainMismatch() {
	ctx := context.Background()

	c, err := s.broker.Generate(ctx, "verifier.example.edu")
	require.NoError(s.T(), err)

	assert.False(s.T(), s.broker.Validate(ctx, c.Token, "attacker.example.com"))
	// The token survives a mismatched attempt and remains usable by the bound domain.
	assert.True(s.T(), s.broker.Validate(ctx, c.Token, "verifier.example.edu"))
}

func (s *BrokerSuite) TestValidateRejectsExpiredToken() {
	ctx := context.Background()

	var offset atomic.Int64
	broker := NewBroker(
		WithTTL(time.Minute),
		WithClock(func() time.Time {
			return time.Now().Add(time.Duration(offset.Load()))
		}),
	)
	defer broker.Close()

	c, err := broker.Generate(ctx, "verifier.example.edu")
	require.NoError(s.T(), err)

	offset.Store(int64(2 * time.Minute))
	assert.False(s.T(), broker.Validate(ctx, c.Token, "verifier.example.edu"))
}

func (s *BrokerSuite) TestConcurrentValidateExactlyOneSucceeds() {
	ctx := context.Background()

	c, err := s.broker.Generate(ctx, "verifier.example.edu")
	require.NoError(s.T(), err)

	const attempts = 32
	var successes atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if s.broker.Validate(ctx, c.Token, "verifier.example.edu") {
				successes.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(s.T(), int32(1), successes.Load())
}

func (s *BrokerSuite) TestSweepRemovesExpiredEntries() {
	ctx := context.Background()

	broker := NewBroker(
		WithTTL(5*time.Millisecond),
		WithCleanupInterval(5*time.Millisecond),
	)
	defer broker.Close()

	c, err := broker.Generate(ctx, "verifier.example.edu")
	require.NoError(s.T(), err)

	require.Eventually(s.T(), func() bool {
		broker.mu.Lock()
		defer broker.mu.Unlock()
		_, exists := broker.challenges[c.Token]
		return !exists
	}, 200*time.Millisecond, 5*time.Millisecond)
}

func TestBrokerSuite(t *testing.T) {
	suite.Run(t, new(BrokerSuite))
}
