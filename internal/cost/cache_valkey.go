package cost

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/valkey-io/valkey-go"

	"github.com/hireloop/notify-engine/internal/domain"
)

const valkeyKeyPrefix = "notify:inbound:"

// ValkeyCache is a Cache backed by a valkey instance, so multiple engine
// replicas share one view of the free window. Timestamps are stored as
// unix seconds with the TTL enforced server-side via EX.
type ValkeyCache struct {
	client valkey.Client
}

// NewValkeyCache connects to the given address and verifies the
// connection with a ping.
func NewValkeyCache(addr, password string) (*ValkeyCache, error) {
	opts := valkey.ClientOption{
		InitAddress: []string{addr},
	}
	if password != "" {
		opts.Password = password
	}

	client, err := valkey.NewClient(opts)
	if err != nil {
		return nil, fmt.Errorf("create valkey client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Do(ctx, client.B().Ping().Build()).Error(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping valkey: %w", err)
	}

	return &ValkeyCache{client: client}, nil
}

func (c *ValkeyCache) key(ch domain.ChannelName, sender string) string {
	return valkeyKeyPrefix + string(ch) + ":" + sender
}

func (c *ValkeyCache) GetLastInbound(ctx context.Context, ch domain.ChannelName, sender string) (time.Time, bool, error) {
	cmd := c.client.B().Get().Key(c.key(ch, sender)).Build()
	raw, err := c.client.Do(ctx, cmd).ToString()
	if err != nil {
		if valkey.IsValkeyNil(err) {
			return time.Time{}, false, nil
		}
		return time.Time{}, false, fmt.Errorf("valkey get: %w", err)
	}

	unix, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("parse cached timestamp %q: %w", raw, err)
	}
	return time.Unix(unix, 0).UTC(), true, nil
}

func (c *ValkeyCache) SetLastInbound(ctx context.Context, ch domain.ChannelName, sender string, ts time.Time, ttl time.Duration) error {
	cmd := c.client.B().Set().
		Key(c.key(ch, sender)).
		Value(strconv.FormatInt(ts.Unix(), 10)).
		Ex(ttl).
		Build()
	if err := c.client.Do(ctx, cmd).Error(); err != nil {
		return fmt.Errorf("valkey set: %w", err)
	}
	return nil
}

// Close releases the underlying connection.
func (c *ValkeyCache) Close() {
	c.client.Close()
}

// compile-time check that ValkeyCache implements Cache
var _ Cache = (*ValkeyCache)(nil)
