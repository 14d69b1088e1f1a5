package docstore

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RedisStore keeps each document as a hash of top-level fields. Writes run as Lua scripts
// so the field update and the change notification land together.
type RedisStore struct {
	client *redis.Client
	log    *zap.Logger
}

func NewRedisStore(client *redis.Client, log *zap.Logger) *RedisStore {
	return &RedisStore{client: client, log: log}
}

func docKey(path string) string {
	return fmt.Sprintf("doc:%s", path)
}

func changesChannel(path string) string {
	return fmt.Sprintf("doc:%s:changes", path)
}

// KEYS[1] = document hash, ARGV[1] = change channel, ARGV[2..] = field/value pairs
var writeInitialScript = redis.NewScript(`
if redis.call("EXISTS", KEYS[1]) == 1 then
  return 0
end
for i = 2, #ARGV, 2 do
  redis.call("HSET", KEYS[1], ARGV[i], ARGV[i + 1])
end
redis.call("PUBLISH", ARGV[1], "init")
return 1
`)

var mergeUpdateScript = redis.NewScript(`
if redis.call("EXISTS", KEYS[1]) == 0 then
  return 0
end
for i = 2, #ARGV, 2 do
  redis.call("HSET", KEYS[1], ARGV[i], ARGV[i + 1])
end
redis.call("PUBLISH", ARGV[1], "merge")
return 1
`)

func scriptArgs(path string, doc Document) []any {
	fields := make([]string, 0, len(doc))
	for k := range doc {
		fields = append(fields, k)
	}
	sort.Strings(fields)

	args := make([]any, 0, 1+2*len(doc))
	args = append(args, changesChannel(path))
	for _, k := range fields {
		args = append(args, k, string(doc[k]))
	}
	return args
}

func (r *RedisStore) WriteInitial(ctx context.Context, path string, doc Document) error {
	_, err := writeInitialScript.Run(ctx, r.client, []string{docKey(path)}, scriptArgs(path, doc)...).Int()
	if err != nil {
		return fmt.Errorf("write initial document: %w", err)
	}
	return nil
}

func (r *RedisStore) MergeUpdate(ctx context.Context, path string, partial Document) error {
	n, err := mergeUpdateScript.Run(ctx, r.client, []string{docKey(path)}, scriptArgs(path, partial)...).Int()
	if err != nil {
		return fmt.Errorf("merge document: %w", err)
	}
	if n == 0 {
		return ErrDocumentNotFound
	}
	return nil
}

func (r *RedisStore) load(ctx context.Context, path string) (Document, bool, error) {
	fields, err := r.client.HGetAll(ctx, docKey(path)).Result()
	if err != nil {
		return nil, false, fmt.Errorf("load document: %w", err)
	}
	if len(fields) == 0 {
		return nil, false, nil
	}
	doc := make(Document, len(fields))
	for k, v := range fields {
		doc[k] = json.RawMessage(v)
	}
	return doc, true, nil
}

func (r *RedisStore) Subscribe(ctx context.Context, path string, fn Listener) (func(), error) {
	ps := r.client.Subscribe(ctx, changesChannel(path))
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, fmt.Errorf("subscribe document: %w", err)
	}

	doc, found, err := r.load(ctx, path)
	if err != nil {
		_ = ps.Close()
		return nil, err
	}
	fn(doc, found)

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			_ = ps.Close()
		})
	}

	go func() {
		ch := ps.Channel()
		for {
			select {
			case <-ctx.Done():
				cancel()
				return
			case _, ok := <-ch:
				if !ok {
					return
				}
				doc, found, err := r.load(ctx, path)
				if err != nil {
					r.log.Warn("reload document after change", zap.String("path", path), zap.Error(err))
					continue
				}
				fn(doc, found)
			}
		}
	}()

	return cancel, nil
}
