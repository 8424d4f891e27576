package checkpoint

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ci-telemetry/snowdoc/internal/logger"
	"github.com/ci-telemetry/snowdoc/internal/snowerr"
)

// State is the incremental driver's resume position: the last emitted
// document's (last_modified, id). It marshals as the two-element JSON
// array the checkpoint contract specifies, `[last_modified, id]`.
type State struct {
	LastModified time.Time
	LastID       int64
}

func (s State) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]any{s.LastModified.UTC().Format(time.RFC3339Nano), s.LastID})
}

func (s *State) UnmarshalJSON(data []byte) error {
	var arr [2]json.RawMessage
	if err := json.Unmarshal(data, &arr); err != nil {
		return err
	}
	var lm string
	if err := json.Unmarshal(arr[0], &lm); err != nil {
		return err
	}
	t, err := time.Parse(time.RFC3339Nano, lm)
	if err != nil {
		return err
	}
	var id int64
	if err := json.Unmarshal(arr[1], &id); err != nil {
		return err
	}
	s.LastModified, s.LastID = t, id
	return nil
}

// Zero is the default state a fresh extraction target starts from.
var Zero = State{}

// Manager binds a KVStore to one extraction target's prefix and owns its
// two keys: "<prefix>.state" and "<prefix>.sql".
type Manager struct {
	store  KVStore
	prefix string
	log    *logger.Logger
}

// NewManager creates a Manager for one extraction target.
func NewManager(store KVStore, prefix string, log *logger.Logger) *Manager {
	if log == nil {
		log = logger.NewDefault()
	}
	return &Manager{store: store, prefix: prefix, log: log}
}

func (m *Manager) stateKey() string { return m.prefix + ".state" }
func (m *Manager) sqlKey() string   { return m.prefix + ".sql" }

// Load returns the stored state, or Zero if this target has never run.
func (m *Manager) Load(ctx context.Context) (State, error) {
	raw, found, err := m.store.Get(ctx, m.stateKey())
	if err != nil {
		return Zero, err
	}
	if !found {
		return Zero, nil
	}
	return parseState(raw)
}

// Save persists st as the new checkpoint. Callers must invoke Save only
// after the corresponding batch has already been pushed to the destination.
func (m *Manager) Save(ctx context.Context, st State) error {
	if err := m.store.Set(ctx, m.stateKey(), formatState(st)); err != nil {
		return err
	}
	m.log.Debugf("checkpoint %q advanced to (%s, %d)", m.prefix, st.LastModified.UTC().Format(time.RFC3339Nano), st.LastID)
	return nil
}

// Reset clears the checkpoint back to Zero, for a `--restart` run.
func (m *Manager) Reset(ctx context.Context) error {
	return m.Save(ctx, Zero)
}

// CheckDrift compares fingerprint to the stored one. If no fingerprint is
// stored yet, fingerprint is adopted and nil is returned. If the stored
// fingerprint differs and override is false, SchemaDrift is returned. If
// override is true, the new fingerprint is stored and the loop continues.
func (m *Manager) CheckDrift(ctx context.Context, fingerprint string, override bool) error {
	stored, found, err := m.store.Get(ctx, m.sqlKey())
	if err != nil {
		return err
	}
	if !found {
		return m.store.Set(ctx, m.sqlKey(), fingerprint)
	}
	if stored == fingerprint {
		return nil
	}
	if !override {
		return &snowerr.SchemaDrift{Prefix: m.prefix}
	}
	m.log.Warnf("schema drift for %q accepted via override; new fingerprint stored", m.prefix)
	return m.store.Set(ctx, m.sqlKey(), fingerprint)
}

func formatState(st State) string {
	b, err := json.Marshal(st)
	if err != nil {
		// State.MarshalJSON cannot fail on a well-formed time.Time.
		panic(err)
	}
	return string(b)
}

func parseState(raw string) (State, error) {
	var st State
	if err := json.Unmarshal([]byte(raw), &st); err != nil {
		return Zero, &snowerr.CheckpointWriteError{Key: "(state)", Cause: fmt.Errorf("malformed checkpoint value %q: %w", raw, err)}
	}
	return st, nil
}
