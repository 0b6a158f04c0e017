package infra

import (
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog/log"

	"bvep.dev/stimulus-next/internal/app/appconfig"
)

// NATS connects to the message bus carrying the engine's event contract.
// Plain core NATS: a single connection preserves publish order, which is all
// the epoch stream needs. The connection is retried briefly so the engine
// survives starting before the bus.
func NATS(conf *appconfig.Config) (*nats.Conn, error) {
	errorHandler := func(conn *nats.Conn, sub *nats.Subscription, err error) {
		e := log.Error().
			Str("evt.name", "nats.error").
			Err(err).
			Str("conn.url", conn.ConnectedUrlRedacted())
		if sub != nil {
			e = e.Str("sub.subject", sub.Subject)
		}
		e.Msg("nats error")
	}

	nc, err := retry.DoWithData(func() (*nats.Conn, error) {
		return nats.Connect(conf.NatsURL,
			nats.PingInterval(time.Second*20),
			nats.ErrorHandler(errorHandler))
	},
		retry.Attempts(5),
		retry.Delay(time.Second),
		retry.OnRetry(func(n uint, err error) {
			log.Warn().Err(err).Uint("attempt", n).Msg("infra: nats: connect failed, retrying")
		}),
	)
	if err != nil {
		log.Error().Err(err).Msg("infra: nats: failed to connect to NATS")
		return nil, err
	}

	return nc, nil
}
