package utils

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Circuit Breaker Tests

func TestCircuitBreaker_ExecuteSuccess(t *testing.T) {
	cb := NewCircuitBreaker("test")
	ctx := context.Background()

	result, err := cb.Execute(ctx, func() (any, error) {
		return "success", nil
	})

	assert.NoError(t, err)
	assert.Equal(t, "success", result)
	assert.Equal(t, StateClosed, cb.state)
	assert.Equal(t, uint32(1), cb.counts.TotalSuccesses)
}

func TestCircuitBreaker_ExecuteFailure(t *testing.T) {
	cb := NewCircuitBreaker("test")
	ctx := context.Background()

	expectedError := errors.New("test error")
	result, err := cb.Execute(ctx, func() (any, error) {
		return nil, expectedError
	})

	assert.Equal(t, expectedError, err)
	assert.Nil(t, result)
	assert.Equal(t, uint32(1), cb.counts.TotalFailures)
}

func TestCircuitBreaker_StateTransition_ClosedToOpen(t *testing.T) {
	cb := NewCircuitBreaker("test")
	cb.maxRequests = 5
	cb.failureRatio = 0.6

	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_, err := cb.Execute(ctx, func() (any, error) {
			return "success", nil
		})
		assert.NoError(t, err)
	}

	for i := 0; i < 4; i++ {
		_, err := cb.Execute(ctx, func() (any, error) {
			return nil, errors.New("failure")
		})
		assert.Error(t, err)
	}

	assert.Equal(t, StateOpen, cb.state)

	// Requests are rejected without executing while open
	_, err := cb.Execute(ctx, func() (any, error) {
		t.Fatal("This should not be executed when circuit is open")
		return nil, nil
	})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "circuit breaker is open")
}

func TestCircuitBreaker_RecoversAfterTimeout(t *testing.T) {
	cb := NewCircuitBreaker("test")
	cb.maxRequests = 5
	cb.failureRatio = 0.6
	cb.timeout = 100 * time.Millisecond

	ctx := context.Background()

	for i := 0; i < 5; i++ {
		cb.Execute(ctx, func() (any, error) {
			return nil, errors.New("failure")
		})
	}
	assert.Equal(t, StateOpen, cb.state)

	time.Sleep(150 * time.Millisecond)

	_, err := cb.Execute(ctx, func() (any, error) {
		return "success", nil
	})

	assert.NoError(t, err)
	assert.Equal(t, StateClosed, cb.state)
}

func TestCircuitBreaker_ConcurrentAccess(t *testing.T) {
	cb := NewCircuitBreaker("concurrent-test")
	ctx := context.Background()

	var wg sync.WaitGroup
	numGoroutines := 100

	for i := 0; i < numGoroutines; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			cb.Execute(ctx, func() (any, error) {
				if id%10 == 0 {
					return nil, errors.New("simulated failure")
				}
				return "success", nil
			})
		}(i)
	}
	wg.Wait()

	assert.Equal(t, uint32(numGoroutines), cb.counts.Requests)
}

func TestCircuitBreaker_PanicRecovery(t *testing.T) {
	cb := NewCircuitBreaker("panic-test")
	ctx := context.Background()

	assert.Panics(t, func() {
		cb.Execute(ctx, func() (any, error) {
			panic("test panic")
		})
	})

	// still functional after the panic
	result, err := cb.Execute(ctx, func() (any, error) {
		return "recovery", nil
	})

	assert.NoError(t, err)
	assert.Equal(t, "recovery", result)
}

// Redis Client Tests

func TestRedisHealthCheck_Success(t *testing.T) {
	db, mock := redismock.NewClientMock()

	mock.ExpectPing().SetVal("PONG")

	assert.NoError(t, RedisHealthCheck(db))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisHealthCheck_Failure(t *testing.T) {
	db, mock := redismock.NewClientMock()

	mock.ExpectPing().SetErr(errors.New("connection failed"))

	err := RedisHealthCheck(db)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "redis health check failed")
}

// Random Code Tests

func TestGenerateCode(t *testing.T) {
	seen := map[string]bool{}
	for i := 0; i < 100; i++ {
		code, err := GenerateCode(4)
		require.NoError(t, err)
		assert.Len(t, code, 8)
		assert.Equal(t, code, strings.ToUpper(code))
		assert.False(t, seen[code], "codes must not repeat")
		seen[code] = true
	}
}
