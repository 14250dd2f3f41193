package persistor

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// RedisPersistor stores checkpoints in Redis, trading durability for the
// low-latency read/write path a frequently-autosaving run benefits from.
// Each checkpoint is a JSON blob under checkpoint:<id>, and run_id is
// indexed via a set at run:<runID>:checkpoints for List/Clear.
type RedisPersistor struct {
	client *redis.Client
}

func NewRedis(client *redis.Client) *RedisPersistor {
	return &RedisPersistor{client: client}
}

func checkpointKey(id string) string { return "checkpoint:" + id }
func runSetKey(runID string) string  { return "run:" + runID + ":checkpoints" }

func (r *RedisPersistor) Save(ctx context.Context, cp *Checkpoint) error {
	blob, err := json.Marshal(cp)
	if err != nil {
		return fmt.Errorf("persistor: marshal checkpoint: %w", err)
	}
	pipe := r.client.TxPipeline()
	pipe.Set(ctx, checkpointKey(cp.ID), blob, 0)
	pipe.SAdd(ctx, runSetKey(cp.RunID), cp.ID)
	_, err = pipe.Exec(ctx)
	return err
}

func (r *RedisPersistor) Load(ctx context.Context, checkpointID string) (*Checkpoint, error) {
	blob, err := r.client.Get(ctx, checkpointKey(checkpointID)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var cp Checkpoint
	if err := json.Unmarshal(blob, &cp); err != nil {
		return nil, err
	}
	return &cp, nil
}

func (r *RedisPersistor) List(ctx context.Context, runID string) ([]*Checkpoint, error) {
	ids, err := r.client.SMembers(ctx, runSetKey(runID)).Result()
	if err != nil {
		return nil, err
	}
	out := make([]*Checkpoint, 0, len(ids))
	for _, id := range ids {
		cp, err := r.Load(ctx, id)
		if err != nil {
			return nil, err
		}
		if cp != nil {
			out = append(out, cp)
		}
	}
	return out, nil
}

func (r *RedisPersistor) Delete(ctx context.Context, checkpointID string) error {
	cp, err := r.Load(ctx, checkpointID)
	if err != nil {
		return err
	}
	pipe := r.client.TxPipeline()
	pipe.Del(ctx, checkpointKey(checkpointID))
	if cp != nil {
		pipe.SRem(ctx, runSetKey(cp.RunID), checkpointID)
	}
	_, err = pipe.Exec(ctx)
	return err
}

func (r *RedisPersistor) Clear(ctx context.Context, runID string) error {
	ids, err := r.client.SMembers(ctx, runSetKey(runID)).Result()
	if err != nil {
		return err
	}
	if len(ids) == 0 {
		return r.client.Del(ctx, runSetKey(runID)).Err()
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = checkpointKey(id)
	}
	pipe := r.client.TxPipeline()
	pipe.Del(ctx, keys...)
	pipe.Del(ctx, runSetKey(runID))
	_, err = pipe.Exec(ctx)
	return err
}
