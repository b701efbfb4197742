package messaging

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"logbot-service/internal/logger"
	"logbot-service/internal/types"

	"github.com/redis/go-redis/v9"
)

// Redis keys
const (
	HashKey       = "logbot"
	FaultSetKey   = "logbot:fault"
	ActionListKey = "logbot:action"
	FaultStream   = "events:faults"
)

// Fields of the logbot hash
const (
	FieldState          = "state"
	FieldStateTimestamp = "state:timestamp"
	FieldAction         = "action"
	FieldRunID          = "run-id"
	FieldLastCompleted  = "last-completed"
	FieldLastSuccess    = "last-completed:success"
	FieldLastResponse   = "last-response"
)

const (
	notificationStatus  = "status"
	notificationFault   = "fault"
	faultGroup          = "logbot"
	faultStreamMaxLen   = 1000
	listenerPollTimeout = 5 * time.Second
)

type Callbacks struct {
	// ActionCallback dispatches an action by name and returns the response
	// payload written back to the hash
	ActionCallback func(string) (string, error)
}

type RedisClient struct {
	client    *redis.Client
	callbacks Callbacks
	logger    *logger.Logger
	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
}

func NewRedisClient(host string, port int, l *logger.Logger, callbacks Callbacks) *RedisClient {
	ctx, cancel := context.WithCancel(context.Background())
	return &RedisClient{
		client: redis.NewClient(&redis.Options{
			Addr: fmt.Sprintf("%s:%d", host, port),
			DB:   0,
		}),
		callbacks: callbacks,
		logger:    l,
		ctx:       ctx,
		cancel:    cancel,
	}
}

func (r *RedisClient) Connect() error {
	r.logger.Infof("Attempting to connect to Redis at %s", r.client.Options().Addr)

	if err := r.client.Ping(r.ctx).Err(); err != nil {
		r.logger.Warnf("Redis connection failed: %v", err)
		return fmt.Errorf("redis connection failed: %w", err)
	}
	r.logger.Infof("Successfully connected to Redis")
	return nil
}

// StartListening starts the command listener once the controller is up
func (r *RedisClient) StartListening() error {
	if r.callbacks.ActionCallback == nil {
		return fmt.Errorf("no action callback set")
	}
	r.logger.Infof("Starting Redis listeners")

	r.wg.Add(1)
	go r.listCommandListener(ActionListKey, r.handleActionCommand)
	return nil
}

func (r *RedisClient) listCommandListener(key string, handler func(string) error) {
	defer r.wg.Done()
	r.logger.Infof("Starting list command listener for %s", key)

	for {
		select {
		case <-r.ctx.Done():
			r.logger.Infof("Context cancelled, exiting %s listener", key)
			return
		default:
			// Use BRPOP with a short timeout to allow periodic context cancellation checks
			result, err := r.client.BRPop(r.ctx, listenerPollTimeout, key).Result()
			if err != nil {
				if errors.Is(err, redis.Nil) {
					continue
				}
				if errors.Is(err, context.Canceled) {
					r.logger.Infof("Context cancelled, exiting %s listener", key)
					return
				}
				r.logger.Warnf("Error reading from %s list: %v", key, err)
				// Avoid spinning while Redis is unreachable
				select {
				case <-r.ctx.Done():
				case <-time.After(time.Second):
				}
				continue
			}

			if len(result) >= 2 { // BRPOP returns [key, value]
				value := result[1]
				r.logger.Debugf("Received command from %s: %s", key, value)
				if err := handler(value); err != nil {
					r.logger.Warnf("Error handling %s command: %v", key, err)
				}
			}
		}
	}
}

func (r *RedisClient) handleActionCommand(value string) error {
	response, err := r.callbacks.ActionCallback(value)
	if err != nil {
		return err
	}
	return r.WriteResponse(response)
}

// publishHashSet is a helper that atomically updates a hash field and publishes a notification
func (r *RedisClient) publishHashSet(field string, value interface{}) error {
	pipe := r.client.Pipeline()
	pipe.HSet(r.ctx, HashKey, field, value)
	pipe.Publish(r.ctx, HashKey, field)
	_, err := pipe.Exec(r.ctx)
	return err
}

func (r *RedisClient) PublishControllerState(state types.ControllerState) error {
	r.logger.Infof("Publishing controller state: %s", state)
	timestamp := time.Now().Format(time.RFC3339)

	// Atomically set both state and timestamp fields
	pipe := r.client.Pipeline()
	pipe.HSet(r.ctx, HashKey, FieldState, string(state))
	pipe.HSet(r.ctx, HashKey, FieldStateTimestamp, timestamp)
	pipe.Publish(r.ctx, HashKey, FieldState)
	_, err := pipe.Exec(r.ctx)

	if err != nil {
		r.logger.Warnf("Failed to publish controller state: %v", err)
		return err
	}
	r.logger.Debugf("Successfully published controller state with timestamp: %s", timestamp)
	return nil
}

// snapshotFields splits a snapshot into the hash fields to set and the ones
// to clear.
func snapshotFields(s types.Snapshot) (set map[string]interface{}, del []string) {
	set = map[string]interface{}{}
	if s.Active != "" {
		set[FieldAction] = s.Active.Route()
		set[FieldRunID] = s.RunID
	} else {
		del = append(del, FieldAction, FieldRunID)
	}
	if s.LastCompleted != nil {
		set[FieldLastCompleted] = s.LastCompleted.Kind.Route()
		set[FieldLastSuccess] = fmt.Sprintf("%t", s.LastCompleted.Succeeded)
	} else {
		del = append(del, FieldLastCompleted, FieldLastSuccess)
	}
	return set, del
}

// PublishSnapshot mirrors the active and last completed run into the hash
func (r *RedisClient) PublishSnapshot(s types.Snapshot) error {
	set, del := snapshotFields(s)

	pipe := r.client.Pipeline()
	if len(set) > 0 {
		pipe.HSet(r.ctx, HashKey, set)
	}
	if len(del) > 0 {
		pipe.HDel(r.ctx, HashKey, del...)
	}
	pipe.Publish(r.ctx, HashKey, notificationStatus)
	if _, err := pipe.Exec(r.ctx); err != nil {
		return fmt.Errorf("failed to publish status: %w", err)
	}
	return nil
}

// WriteResponse stores the response to the last list command
func (r *RedisClient) WriteResponse(payload string) error {
	if err := r.publishHashSet(FieldLastResponse, payload); err != nil {
		return fmt.Errorf("failed to write response: %w", err)
	}
	return nil
}

// ReportFaultPresent reports a fault as present to Redis
func (r *RedisClient) ReportFaultPresent(code int, description string, timestamp int64, info string) error {
	r.logger.Infof("Reporting fault present: code=%d, description=%s", code, description)

	pipe := r.client.Pipeline()

	// Add fault code to active faults set
	pipe.SAdd(r.ctx, FaultSetKey, code)

	// Add fault event to global event stream with metadata
	eventData := map[string]interface{}{
		"group":       faultGroup,
		"code":        code,
		"description": description,
		"ts":          timestamp,
	}
	if info != "" {
		eventData["info"] = info
	}
	pipe.XAdd(r.ctx, &redis.XAddArgs{
		Stream: FaultStream,
		MaxLen: faultStreamMaxLen,
		Values: eventData,
	})

	pipe.Publish(r.ctx, HashKey, notificationFault)

	_, err := pipe.Exec(r.ctx)
	if err != nil {
		r.logger.Warnf("Failed to report fault present: %v", err)
		return err
	}

	r.logger.Infof("Successfully reported fault %d as present", code)
	return nil
}

// ReportFaultAbsent reports a fault as absent (cleared) to Redis
func (r *RedisClient) ReportFaultAbsent(code int) error {
	r.logger.Infof("Reporting fault absent: code=%d", code)

	pipe := r.client.Pipeline()
	pipe.SRem(r.ctx, FaultSetKey, code)

	// Negative code indicates fault cleared
	pipe.XAdd(r.ctx, &redis.XAddArgs{
		Stream: FaultStream,
		MaxLen: faultStreamMaxLen,
		Values: map[string]interface{}{
			"group": faultGroup,
			"code":  -code,
		},
	})
	pipe.Publish(r.ctx, HashKey, notificationFault)

	_, err := pipe.Exec(r.ctx)
	if err != nil {
		r.logger.Warnf("Failed to report fault absent: %v", err)
		return err
	}

	r.logger.Infof("Successfully reported fault %d as absent", code)
	return nil
}

func (r *RedisClient) Close() error {
	r.logger.Infof("Closing Redis client")
	r.cancel()

	// Wait for all goroutines to finish with a timeout
	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		r.logger.Infof("All Redis goroutines finished")
	case <-time.After(listenerPollTimeout + time.Second):
		r.logger.Warnf("Timeout waiting for Redis goroutines to finish")
	}

	return r.client.Close()
}
