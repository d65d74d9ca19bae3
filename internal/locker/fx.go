package locker

import (
	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/vendora/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type Params struct {
	fx.In

	Config config.Config
	Log    *zap.Logger
}

// Provide picks the redis locker when a redis address is configured,
// falling back to the in-process locker for single replica deployments.
func Provide(p Params) (MachineLocker, error) {
	if p.Config.RedisAddr == "" {
		p.Log.Info("machine locks: in-process")
		return NewKeyedLocker(), nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     p.Config.RedisAddr,
		Password: p.Config.RedisPassword,
	})
	p.Log.Info("machine locks: redis", zap.String("addr", p.Config.RedisAddr))
	return NewRedisLocker(client)
}

var Module = fx.Module("locker",
	fx.Provide(Provide),
)
