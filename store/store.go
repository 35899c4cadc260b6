// Package store persists machine identities, trained models, reference
// sessions, room calibrations, and diagnosis results. Two backends share
// one typed layer: BadgerDB for the on-device database and an in-memory
// map for tests and ephemeral runs.
package store

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/RyanBlaney/sonido-sentinel/diagnosis"
	"github.com/RyanBlaney/sonido-sentinel/feature"
	"github.com/RyanBlaney/sonido-sentinel/gmia"
	"github.com/RyanBlaney/sonido-sentinel/roomcomp"
)

var (
	ErrNotFound = errors.New("store: not found")
	ErrExists   = errors.New("store: already exists")
)

// Machine is one monitored device. Models, reference sessions,
// calibrations, and results all hang off its ID.
type Machine struct {
	ID        string    `json:"id" msgpack:"id"`
	Name      string    `json:"name" msgpack:"name"`
	Notes     string    `json:"notes,omitempty" msgpack:"notes,omitempty"`
	CreatedAt time.Time `json:"created_at" msgpack:"created_at"`
}

// Store is the full persistence surface. The diagnosis package declares
// the subset it consumes; both backends satisfy both interfaces.
type Store interface {
	CreateMachine(ctx context.Context, m *Machine) error
	Machine(ctx context.Context, id string) (*Machine, error)
	Machines(ctx context.Context) ([]*Machine, error)
	DeleteMachine(ctx context.Context, id string) error
	MachineExists(ctx context.Context, id string) (bool, error)

	Models(ctx context.Context, machineID string) ([]*gmia.Model, error)
	SaveModel(ctx context.Context, machineID string, m *gmia.Model) error
	DeleteModel(ctx context.Context, machineID, modelID string) error

	Reference(ctx context.Context, machineID string) ([]*feature.Vector, error)
	SaveReference(ctx context.Context, machineID string, frames []*feature.Vector) error

	Calibration(ctx context.Context, machineID string) (*roomcomp.T60Estimate, error)
	SaveCalibration(ctx context.Context, machineID string, est *roomcomp.T60Estimate) error

	SaveResult(ctx context.Context, machineID string, r *diagnosis.Result) error
	Results(ctx context.Context, machineID string, limit int) ([]*diagnosis.Result, error)

	Close() error
}

var (
	_ Store           = (*Badger)(nil)
	_ Store           = (*Memory)(nil)
	_ diagnosis.Store = (*Badger)(nil)
	_ diagnosis.Store = (*Memory)(nil)
)

// backend is the key-value seam between the typed layer and the engines.
// Keys are flat strings; scan returns entries in ascending key order.
type backend interface {
	get(key string) ([]byte, error)
	set(key string, value []byte) error
	// delete returns ErrNotFound when the key is absent.
	delete(key string) error
	scan(prefix string) ([]entry, error)
	// deleteAll ignores absent keys.
	deleteAll(keys []string) error
	close() error
}

type entry struct {
	key   string
	value []byte
}

// Key layout. Machine IDs must not contain the separator, so every
// record root stays a disjoint prefix:
//
//	machine/<id>                      → Machine
//	model/<machineID>/<modelID>       → gmia.Model
//	reference/<machineID>             → []*feature.Vector
//	calibration/<machineID>           → roomcomp.T60Estimate
//	result/<machineID>/<ts>/<id>      → diagnosis.Result
//
// Result keys embed a zero-padded nanosecond timestamp, so ascending key
// order is chronological order.
const machinePrefix = "machine/"

func machineKey(id string) string { return machinePrefix + id }

func modelKey(mid, id string) string { return "model/" + mid + "/" + id }

func modelPrefix(mid string) string { return "model/" + mid + "/" }

func referenceKey(mid string) string { return "reference/" + mid }

func calibrationKey(mid string) string { return "calibration/" + mid }

func resultPrefix(mid string) string { return "result/" + mid + "/" }

func resultKey(mid string, ts int64, id string) string {
	return fmt.Sprintf("result/%s/%020d/%s", mid, ts, id)
}

func validateMachineID(id string) error {
	if id == "" {
		return errors.New("store: machine id must not be empty")
	}
	if strings.ContainsRune(id, '/') {
		return fmt.Errorf("store: machine id %q must not contain '/'", id)
	}
	return nil
}

// db implements the Store interface over a backend. Badger and Memory
// embed it.
type db struct {
	b backend
}

func (d db) CreateMachine(_ context.Context, m *Machine) error {
	if m == nil {
		return errors.New("store: nil machine")
	}
	if err := validateMachineID(m.ID); err != nil {
		return err
	}
	if _, err := d.b.get(machineKey(m.ID)); err == nil {
		return fmt.Errorf("store: machine %s: %w", m.ID, ErrExists)
	} else if !errors.Is(err, ErrNotFound) {
		return err
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now()
	}
	return d.put(machineKey(m.ID), m)
}

func (d db) Machine(_ context.Context, id string) (*Machine, error) {
	var m Machine
	if err := d.load(machineKey(id), &m); err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, fmt.Errorf("store: machine %s: %w", id, ErrNotFound)
		}
		return nil, err
	}
	return &m, nil
}

func (d db) Machines(_ context.Context) ([]*Machine, error) {
	entries, err := d.b.scan(machinePrefix)
	if err != nil {
		return nil, err
	}
	machines := make([]*Machine, 0, len(entries))
	for _, e := range entries {
		var m Machine
		if err := msgpack.Unmarshal(e.value, &m); err != nil {
			return nil, fmt.Errorf("store: corrupt machine record %s: %w", e.key, err)
		}
		machines = append(machines, &m)
	}
	return machines, nil
}

// DeleteMachine removes the machine and everything recorded under it:
// models, the reference session, the calibration, and all results.
func (d db) DeleteMachine(ctx context.Context, id string) error {
	if _, err := d.Machine(ctx, id); err != nil {
		return err
	}

	keys := []string{machineKey(id), referenceKey(id), calibrationKey(id)}
	for _, prefix := range []string{modelPrefix(id), resultPrefix(id)} {
		entries, err := d.b.scan(prefix)
		if err != nil {
			return err
		}
		for _, e := range entries {
			keys = append(keys, e.key)
		}
	}
	return d.b.deleteAll(keys)
}

func (d db) MachineExists(_ context.Context, id string) (bool, error) {
	_, err := d.b.get(machineKey(id))
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// Models returns the machine's trained states ordered by training time.
// Callers are expected to have checked the machine exists; an unknown
// machine simply has no models.
func (d db) Models(_ context.Context, machineID string) ([]*gmia.Model, error) {
	entries, err := d.b.scan(modelPrefix(machineID))
	if err != nil {
		return nil, err
	}
	models := make([]*gmia.Model, 0, len(entries))
	for _, e := range entries {
		var m gmia.Model
		if err := msgpack.Unmarshal(e.value, &m); err != nil {
			return nil, fmt.Errorf("store: corrupt model record %s: %w", e.key, err)
		}
		models = append(models, &m)
	}
	sort.SliceStable(models, func(i, j int) bool {
		return models[i].TrainedAt.Before(models[j].TrainedAt)
	})
	return models, nil
}

func (d db) SaveModel(_ context.Context, machineID string, m *gmia.Model) error {
	if m == nil || m.ID == "" {
		return errors.New("store: model must have an id")
	}
	return d.put(modelKey(machineID, m.ID), m)
}

func (d db) DeleteModel(_ context.Context, machineID, modelID string) error {
	err := d.b.delete(modelKey(machineID, modelID))
	if errors.Is(err, ErrNotFound) {
		return fmt.Errorf("store: model %s: %w", modelID, ErrNotFound)
	}
	return err
}

// Reference returns the stored reference session, or (nil, nil) when the
// machine has none.
func (d db) Reference(_ context.Context, machineID string) ([]*feature.Vector, error) {
	var frames []*feature.Vector
	err := d.load(referenceKey(machineID), &frames)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return frames, nil
}

func (d db) SaveReference(_ context.Context, machineID string, frames []*feature.Vector) error {
	return d.put(referenceKey(machineID), frames)
}

// Calibration returns the stored room calibration, or (nil, nil) when
// the machine has none.
func (d db) Calibration(_ context.Context, machineID string) (*roomcomp.T60Estimate, error) {
	var est roomcomp.T60Estimate
	err := d.load(calibrationKey(machineID), &est)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &est, nil
}

func (d db) SaveCalibration(_ context.Context, machineID string, est *roomcomp.T60Estimate) error {
	if est == nil {
		return errors.New("store: nil calibration")
	}
	return d.put(calibrationKey(machineID), est)
}

func (d db) SaveResult(_ context.Context, machineID string, r *diagnosis.Result) error {
	if r == nil {
		return errors.New("store: nil result")
	}
	ts := r.CompletedAt
	if ts.IsZero() {
		ts = time.Now()
	}
	return d.put(resultKey(machineID, ts.UnixNano(), r.ID), r)
}

// Results returns the machine's diagnosis history, newest first. A limit
// of zero or less returns everything.
func (d db) Results(_ context.Context, machineID string, limit int) ([]*diagnosis.Result, error) {
	entries, err := d.b.scan(resultPrefix(machineID))
	if err != nil {
		return nil, err
	}
	results := make([]*diagnosis.Result, 0, len(entries))
	for _, e := range entries {
		var r diagnosis.Result
		if err := msgpack.Unmarshal(e.value, &r); err != nil {
			return nil, fmt.Errorf("store: corrupt result record %s: %w", e.key, err)
		}
		results = append(results, &r)
	}

	// Scan order is chronological; reverse for newest first.
	for i, j := 0, len(results)-1; i < j; i, j = i+1, j-1 {
		results[i], results[j] = results[j], results[i]
	}
	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

func (d db) Close() error {
	return d.b.close()
}

func (d db) put(key string, value any) error {
	raw, err := msgpack.Marshal(value)
	if err != nil {
		return fmt.Errorf("store: encode %s: %w", key, err)
	}
	return d.b.set(key, raw)
}

func (d db) load(key string, out any) error {
	raw, err := d.b.get(key)
	if err != nil {
		return err
	}
	if err := msgpack.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("store: decode %s: %w", key, err)
	}
	return nil
}
