package store

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"codepad/internal/job"
)

// RedisStore keeps job records in per-job hashes (job:{id}) with a TTL,
// and access tokens as wstoken:{digest} string keys with a shorter TTL.
type RedisStore struct {
	client   *redis.Client
	jobTTL   time.Duration
	tokenTTL time.Duration
}

var _ Store = (*RedisStore)(nil)

// transitionScript updates the status field only when the current status
// is one of the allowed source states, and writes any extra fields in
// the same atomic step. Returns 1 on success, 0 on an illegal
// transition, -1 when the job does not exist.
//
// KEYS[1] job key; ARGV layout:
//
//	[new_status, field1, value1, field2, value2, ..., "--", allowed...]
var transitionScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 0 then
  return -1
end
local cur = redis.call('HGET', KEYS[1], 'status')
local i = 2
local fields = {}
while i <= #ARGV and ARGV[i] ~= '--' do
  table.insert(fields, ARGV[i])
  i = i + 1
end
i = i + 1
local ok = false
while i <= #ARGV do
  if cur == ARGV[i] then ok = true end
  i = i + 1
end
if not ok then
  return 0
end
redis.call('HSET', KEYS[1], 'status', ARGV[1])
for j = 1, #fields, 2 do
  redis.call('HSET', KEYS[1], fields[j], fields[j+1])
end
return 1
`)

func NewRedisStore(client *redis.Client, jobTTL, tokenTTL time.Duration) *RedisStore {
	return &RedisStore{client: client, jobTTL: jobTTL, tokenTTL: tokenTTL}
}

func jobKey(jobID string) string { return "job:" + jobID }

// tokenKey derives the storage key from the token's SHA-256 digest, so
// the raw secret is never stored and lookup never compares secret bytes.
func tokenKey(token string) string {
	sum := sha256.Sum256([]byte(token))
	return "wstoken:" + hex.EncodeToString(sum[:])
}

func (s *RedisStore) Create(ctx context.Context, code string, lang job.Language, filename string) (*Created, error) {
	if err := job.ValidateFilename(filename); err != nil {
		return nil, err
	}

	jobID := uuid.New().String()
	now := time.Now()

	secret := make([]byte, 32)
	if _, err := rand.Read(secret); err != nil {
		return nil, fmt.Errorf("generating token: %w", err)
	}
	token := hex.EncodeToString(secret)

	key := jobKey(jobID)
	pipe := s.client.TxPipeline()
	pipe.HSet(ctx, key, map[string]any{
		"job_id":     jobID,
		"code":       code,
		"language":   string(lang),
		"filename":   filename,
		"status":     string(job.StatusQueued),
		"created_at": strconv.FormatInt(now.UnixMilli(), 10),
	})
	pipe.Expire(ctx, key, s.jobTTL)
	pipe.Set(ctx, tokenKey(token), jobID, s.tokenTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("creating job: %w", err)
	}

	log.Debug().Str("job_id", jobID).Str("language", string(lang)).Msg("job created")

	return &Created{
		JobID:          jobID,
		Token:          token,
		TokenExpiresAt: now.Add(s.tokenTTL),
	}, nil
}

func (s *RedisStore) Get(ctx context.Context, jobID string) (*job.Job, error) {
	data, err := s.client.HGetAll(ctx, jobKey(jobID)).Result()
	if err != nil {
		return nil, fmt.Errorf("fetching job %s: %w", jobID, err)
	}
	if len(data) == 0 {
		return nil, ErrNotFound
	}

	j := &job.Job{
		ID:       data["job_id"],
		Code:     data["code"],
		Language: job.Language(data["language"]),
		Filename: data["filename"],
		Status:   job.Status(data["status"]),
		Error:    data["error"],
	}
	if v, ok := data["created_at"]; ok {
		if ms, err := strconv.ParseInt(v, 10, 64); err == nil {
			j.CreatedAt = time.UnixMilli(ms)
		}
	}
	if v, ok := data["completed_at"]; ok {
		if ms, err := strconv.ParseInt(v, 10, 64); err == nil {
			t := time.UnixMilli(ms)
			j.CompletedAt = &t
		}
	}
	if v, ok := data["result"]; ok && v != "" {
		var res job.Result
		if err := json.Unmarshal([]byte(v), &res); err == nil {
			j.Result = &res
		}
	}
	return j, nil
}

func (s *RedisStore) MarkProcessing(ctx context.Context, jobID string) error {
	return s.transition(ctx, jobID, job.StatusProcessing, nil, job.StatusQueued)
}

func (s *RedisStore) MarkCompleted(ctx context.Context, jobID string, res job.Result) error {
	payload, err := json.Marshal(res)
	if err != nil {
		return fmt.Errorf("marshaling result: %w", err)
	}
	fields := []string{
		"result", string(payload),
		"completed_at", strconv.FormatInt(time.Now().UnixMilli(), 10),
	}
	return s.transition(ctx, jobID, job.StatusCompleted, fields, job.StatusProcessing)
}

func (s *RedisStore) MarkFailed(ctx context.Context, jobID string, errMsg string, partial *job.Result) error {
	fields := []string{
		"error", errMsg,
		"completed_at", strconv.FormatInt(time.Now().UnixMilli(), 10),
	}
	if partial != nil {
		payload, err := json.Marshal(partial)
		if err != nil {
			return fmt.Errorf("marshaling partial result: %w", err)
		}
		fields = append(fields, "result", string(payload))
	}
	return s.transition(ctx, jobID, job.StatusFailed, fields, job.StatusQueued, job.StatusProcessing)
}

func (s *RedisStore) transition(ctx context.Context, jobID string, next job.Status, fields []string, from ...job.Status) error {
	argv := make([]any, 0, len(fields)+len(from)+2)
	argv = append(argv, string(next))
	for _, f := range fields {
		argv = append(argv, f)
	}
	argv = append(argv, "--")
	for _, f := range from {
		argv = append(argv, string(f))
	}

	n, err := transitionScript.Run(ctx, s.client, []string{jobKey(jobID)}, argv...).Int()
	if err != nil {
		return fmt.Errorf("transitioning job %s to %s: %w", jobID, next, err)
	}
	switch n {
	case 1:
		return nil
	case 0:
		return fmt.Errorf("job %s to %s: %w", jobID, next, ErrIllegalTransition)
	default:
		return fmt.Errorf("job %s: %w", jobID, ErrNotFound)
	}
}

// ConsumeToken redeems a token exactly once (GETDEL) and returns the
// bound job identifier.
func (s *RedisStore) ConsumeToken(ctx context.Context, token string) (string, error) {
	if token == "" {
		return "", ErrInvalidToken
	}
	jobID, err := s.client.GetDel(ctx, tokenKey(token)).Result()
	if err == redis.Nil {
		return "", ErrInvalidToken
	}
	if err != nil {
		return "", fmt.Errorf("consuming token: %w", err)
	}
	return jobID, nil
}
