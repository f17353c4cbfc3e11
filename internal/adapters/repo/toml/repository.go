package toml

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/bnema/rigpilot/internal/domain"
	"github.com/bnema/rigpilot/internal/ports"
	toml "github.com/pelletier/go-toml/v2"
)

const (
	snapshotFileMode = 0o600
	snapshotDirMode  = 0o700
	tempFilePattern  = ".snapshot-*.toml.tmp"
)

// SnapshotRepository keeps the last synchronized snapshot on disk so the
// status command has something to show when the server is unreachable.
type SnapshotRepository struct {
	path  string
	clock ports.Clock
	mu    *sync.RWMutex
}

var (
	lockRegistryMu sync.Mutex
	pathLockMap    = map[string]*sync.RWMutex{}
)

var _ ports.SnapshotRepository = (*SnapshotRepository)(nil)

func NewSnapshotRepository(path string, clock ports.Clock) (*SnapshotRepository, error) {
	if path == "" {
		return nil, errors.New("snapshot path is empty")
	}
	if clock == nil {
		clock = ports.SystemClock{}
	}

	path, err := normalizePath(path)
	if err != nil {
		return nil, err
	}

	return &SnapshotRepository{path: path, clock: clock, mu: lockForPath(path)}, nil
}

func (r *SnapshotRepository) Path() string {
	return r.path
}

func (r *SnapshotRepository) Save(ctx context.Context, snapshot domain.Snapshot) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	file := toSchema(snapshot)
	file.SavedAt = formatTime(r.clock.Now())

	if err := ctx.Err(); err != nil {
		return err
	}

	return r.writeSchema(file)
}

func (r *SnapshotRepository) Load(ctx context.Context) (domain.Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return domain.Snapshot{}, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	data, err := os.ReadFile(r.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return domain.Snapshot{}, domain.ErrSnapshotNotFound
		}
		return domain.Snapshot{}, fmt.Errorf("read snapshot file: %w", err)
	}

	var file fileSchema
	if err := toml.Unmarshal(data, &file); err != nil {
		return domain.Snapshot{}, fmt.Errorf("decode snapshot file: %w", err)
	}
	if err := file.validateVersion(); err != nil {
		return domain.Snapshot{}, err
	}
	file.applyDefaults()

	return fromSchema(file), nil
}

func normalizePath(path string) (string, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("resolve snapshot path: %w", err)
	}

	return filepath.Clean(absPath), nil
}

func lockForPath(path string) *sync.RWMutex {
	lockRegistryMu.Lock()
	defer lockRegistryMu.Unlock()

	if mu, ok := pathLockMap[path]; ok {
		return mu
	}

	mu := &sync.RWMutex{}
	pathLockMap[path] = mu
	return mu
}

func (r *SnapshotRepository) writeSchema(file fileSchema) error {
	file.applyDefaults()

	if err := os.MkdirAll(filepath.Dir(r.path), snapshotDirMode); err != nil {
		return fmt.Errorf("create snapshot directory: %w", err)
	}

	data, err := toml.Marshal(file)
	if err != nil {
		return fmt.Errorf("encode snapshot file: %w", err)
	}

	tempFile, err := os.CreateTemp(filepath.Dir(r.path), tempFilePattern)
	if err != nil {
		return fmt.Errorf("create temp snapshot file: %w", err)
	}

	tempName := tempFile.Name()
	cleanup := true
	defer func() {
		if cleanup {
			_ = os.Remove(tempName)
		}
	}()

	if _, err := tempFile.Write(data); err != nil {
		_ = tempFile.Close()
		return fmt.Errorf("write temp snapshot file: %w", err)
	}

	if err := tempFile.Chmod(snapshotFileMode); err != nil {
		_ = tempFile.Close()
		return fmt.Errorf("chmod temp snapshot file: %w", err)
	}

	if err := tempFile.Close(); err != nil {
		return fmt.Errorf("close temp snapshot file: %w", err)
	}

	if err := os.Rename(tempName, r.path); err != nil {
		return fmt.Errorf("replace snapshot file: %w", err)
	}

	cleanup = false
	return nil
}

func toSchema(snapshot domain.Snapshot) fileSchema {
	file := fileSchema{
		Version: currentSchemaVersion,
		AsOf:    formatTime(snapshot.AsOf),
		Account: accountSchema{Balance: snapshot.Account.Balance},
		Rigs:    make([]rigSchema, 0, len(snapshot.Rigs)),
	}

	if boost := snapshot.Account.Boost; boost != nil {
		file.Account.Boost = &boostSchema{
			StartedAt:  formatTime(boost.StartedAt),
			ExpiresAt:  formatTime(boost.ExpiresAt),
			Multiplier: boost.Multiplier,
		}
	}
	if entitlement := snapshot.Account.Entitlement; entitlement != nil {
		file.Account.Entitlement = &entitlementSchema{ExpiresAt: formatTime(entitlement.ExpiresAt)}
	}

	for _, rig := range snapshot.Rigs {
		encoded := rigSchema{
			ID:               string(rig.ID),
			Name:             rig.Name,
			Tier:             string(rig.Tier),
			Energy:           rig.Energy,
			EnergyUpdatedAt:  formatTime(rig.EnergyUpdatedAt),
			LastClaimAt:      formatTime(rig.LastClaimAt),
			LastGiftAt:       formatTime(rig.LastGiftAt),
			AcquiredAt:       formatTime(rig.AcquiredAt),
			Status:           string(rig.Status),
			ClaimAvailableAt: formatTime(rig.ClaimAvailableAt),
		}
		if rig.PendingReward != nil {
			encoded.PendingReward = &rewardSchema{Kind: string(rig.PendingReward.Kind), Amount: rig.PendingReward.Amount}
		}
		file.Rigs = append(file.Rigs, encoded)
	}

	return file
}

func fromSchema(file fileSchema) domain.Snapshot {
	snapshot := domain.Snapshot{
		AsOf:    parseTime(file.AsOf),
		Account: domain.Account{Balance: file.Account.Balance},
		Rigs:    make([]domain.Rig, 0, len(file.Rigs)),
	}

	if boost := file.Account.Boost; boost != nil {
		snapshot.Account.Boost = &domain.Boost{
			StartedAt:  parseTime(boost.StartedAt),
			ExpiresAt:  parseTime(boost.ExpiresAt),
			Multiplier: boost.Multiplier,
		}
	}
	if entitlement := file.Account.Entitlement; entitlement != nil {
		snapshot.Account.Entitlement = &domain.Entitlement{ExpiresAt: parseTime(entitlement.ExpiresAt)}
	}

	for _, entry := range file.Rigs {
		status := domain.ParseRigStatus(entry.Status)

		rig := domain.Rig{
			ID:               domain.RigID(entry.ID),
			Name:             entry.Name,
			Tier:             domain.Tier(entry.Tier),
			Energy:           entry.Energy,
			EnergyUpdatedAt:  parseTime(entry.EnergyUpdatedAt),
			LastClaimAt:      parseTime(entry.LastClaimAt),
			LastGiftAt:       parseTime(entry.LastGiftAt),
			AcquiredAt:       parseTime(entry.AcquiredAt),
			Status:           status,
			ClaimAvailableAt: parseTime(entry.ClaimAvailableAt),
		}
		if entry.PendingReward != nil {
			rig.PendingReward = &domain.Reward{Kind: domain.RewardKind(entry.PendingReward.Kind), Amount: entry.PendingReward.Amount}
		}
		snapshot.Rigs = append(snapshot.Rigs, rig)
	}

	return snapshot
}

func parseTime(raw string) time.Time {
	if raw == "" {
		return time.Time{}
	}

	parsed, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return time.Time{}
	}

	return parsed
}

func formatTime(value time.Time) string {
	if value.IsZero() {
		return ""
	}

	return value.UTC().Format(time.RFC3339Nano)
}
