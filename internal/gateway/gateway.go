// Package gateway wraps outbound event emission and inbound subscription on
// the message bus. It is the only injection point for external data into the
// engine: inbound payloads are decoded and turned into hub signals here, and
// malformed payloads are logged and dropped at this boundary so a wait never
// hangs on a propagated decoding error.
package gateway

import (
	"github.com/davecgh/go-spew/spew"
	"github.com/goccy/go-json"
	"github.com/nats-io/nats.go"
	"github.com/pkg/errors"
	"github.com/rs/xid"
	"github.com/rs/zerolog/log"

	"bvep.dev/stimulus-next/internal/model"
	"bvep.dev/stimulus-next/internal/pkg/observability"
	"bvep.dev/stimulus-next/internal/signals"
)

// Inbound event names on the bus.
const (
	SubjectPredictions = "predictions"
	SubjectKeys        = "keys"
)

// Row labels used by the classifier pipeline on the predictions stream.
const (
	LabelReady   = "ready"
	LabelPredict = "predict"
)

type Gateway struct {
	nc      *nats.Conn
	prefix  string
	hub     *signals.Hub
	session string
}

func New(nc *nats.Conn, prefix string, hub *signals.Hub) *Gateway {
	return &Gateway{
		nc:      nc,
		prefix:  prefix,
		hub:     hub,
		session: xid.New().String(),
	}
}

// SessionID identifies this session on every outbound event and in logs.
func (g *Gateway) SessionID() string {
	return g.session
}

// SessionHeader carries the session ID on every outbound message.
const SessionHeader = "Stim-Session-Id"

// Event publishes a named outbound event. A nil payload publishes an empty
// body. Publish order on one connection is preserved, which carries the
// epoch ordering guarantee.
func (g *Gateway) Event(name string, payload any) error {
	var body []byte
	if payload != nil {
		var err error
		body, err = json.Marshal(payload)
		if err != nil {
			return errors.Wrapf(err, "gateway: failed to encode %s payload", name)
		}
	}
	return g.nc.PublishMsg(&nats.Msg{
		Subject: g.prefix + "." + name,
		Header:  nats.Header{SessionHeader: []string{g.session}},
		Data:    body,
	})
}

// On subscribes a handler to a named inbound event. Handlers run on the NATS
// delivery goroutine and must not block; they only decode and raise signals.
func (g *Gateway) On(name string, handler func(data []byte)) (*nats.Subscription, error) {
	return g.nc.Subscribe(g.prefix+"."+name, func(m *nats.Msg) {
		handler(m.Data)
	})
}

// Subscribe wires the classifier and keyboard streams into the signal hub.
// Invoked once at startup.
func Subscribe(g *Gateway) error {
	if _, err := g.On(SubjectPredictions, g.handlePredictions); err != nil {
		return errors.Wrap(err, "gateway: failed to subscribe to predictions")
	}
	if _, err := g.On(SubjectKeys, g.handleKeys); err != nil {
		return errors.Wrap(err, "gateway: failed to subscribe to keys")
	}
	log.Info().Str("session", g.session).Msg("gateway: subscribed to inbound streams")
	return nil
}

// predictionRow mirrors the event rows published by the accumulation node:
// a label plus a label-specific data payload.
type predictionRow struct {
	Label string          `json:"label"`
	Data  json.RawMessage `json:"data"`
}

type keyRow struct {
	Key string `json:"key"`
}

func (g *Gateway) handlePredictions(data []byte) {
	rows, err := decodeRows[predictionRow](data)
	if err != nil {
		log.Error().Err(err).Str("payload", spew.Sdump(data)).Msg("gateway: malformed predictions payload; dropped")
		return
	}

	for _, row := range rows {
		switch row.Label {
		case LabelReady:
			g.hub.Raise(signals.Ready, nil)

		case LabelPredict:
			pred, err := decodePrediction(row.Data)
			if err != nil {
				log.Error().Err(err).Str("payload", spew.Sdump(row.Data)).Msg("gateway: malformed predict payload; dropped")
				continue
			}
			observability.PredictionsTotal.Inc()
			g.hub.Raise(signals.Predict, pred)

		default:
			log.Debug().Str("label", row.Label).Msg("gateway: ignoring unknown prediction row label")
		}
	}
}

func (g *Gateway) handleKeys(data []byte) {
	rows, err := decodeRows[keyRow](data)
	if err != nil {
		log.Error().Err(err).Str("payload", spew.Sdump(data)).Msg("gateway: malformed keys payload; dropped")
		return
	}
	for _, row := range rows {
		g.hub.Raise(signals.Key, row.Key)
	}
}

// decodeRows accepts both a single row object and an array of rows; the
// pipeline batches rows when several land in one graph cycle.
func decodeRows[T any](data []byte) ([]T, error) {
	var rows []T
	if err := json.Unmarshal(data, &rows); err == nil {
		return rows, nil
	}
	var row T
	if err := json.Unmarshal(data, &row); err != nil {
		return nil, err
	}
	return []T{row}, nil
}

// decodePrediction handles the data field of a predict row: an object
// {"target": t, "frames": f}, the same object double-encoded as a JSON
// string, or the legacy bare integer target.
func decodePrediction(raw json.RawMessage) (model.Prediction, error) {
	if len(raw) > 0 && raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return model.Prediction{}, err
		}
		raw = []byte(s)
	}
	var pred model.Prediction
	if err := json.Unmarshal(raw, &pred); err != nil {
		return model.Prediction{}, err
	}
	return pred, nil
}
