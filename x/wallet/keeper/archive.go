package keeper

import (
	"context"
	"encoding/json"
	"fmt"

	errorsmod "cosmossdk.io/errors"
	sdk "github.com/cosmos/cosmos-sdk/types"

	"github.com/remitwise/remitwise/x/lifecycle"
	"github.com/remitwise/remitwise/x/wallet/types"
)

func (k Keeper) proposalTiers() lifecycle.Manager[uint64] {
	return lifecycle.NewManager(&k.Proposals, &k.ArchivedProposals)
}

func wrapArchived(nowUnix int64) func(string) (string, error) {
	return func(raw string) (string, error) {
		var proposal types.Proposal
		if err := json.Unmarshal([]byte(raw), &proposal); err != nil {
			return "", fmt.Errorf("decode proposal: %w", err)
		}
		out, err := json.Marshal(types.ArchivedProposal{
			Proposal:       proposal,
			ArchivedAtUnix: nowUnix,
		})
		if err != nil {
			return "", err
		}
		return string(out), nil
	}
}

func unwrapArchived(raw string) (string, error) {
	var archived types.ArchivedProposal
	if err := json.Unmarshal([]byte(raw), &archived); err != nil {
		return "", fmt.Errorf("decode archived proposal: %w", err)
	}
	out, err := json.Marshal(archived.Proposal)
	if err != nil {
		return "", err
	}
	return string(out), nil
}

func archivedAtStamp(raw string) (int64, error) {
	var archived types.ArchivedProposal
	if err := json.Unmarshal([]byte(raw), &archived); err != nil {
		return 0, fmt.Errorf("decode archived proposal: %w", err)
	}
	return archived.ArchivedAtUnix, nil
}

// ArchiveOldTransactions moves terminal proposals whose resolution
// predates cutoff into the archive tier. Owner or Admin only. A Pending
// proposal is never archived.
func (k Keeper) ArchiveOldTransactions(ctx context.Context, caller string, cutoffUnix int64) (int, error) {
	if err := k.requireNotPaused(ctx); err != nil {
		return 0, err
	}
	if err := k.requireInitialized(ctx); err != nil {
		return 0, err
	}
	if err := k.requireOwnerOrAdmin(ctx, caller); err != nil {
		return 0, err
	}

	var eligible []uint64
	err := k.Proposals.Walk(ctx, nil, func(id uint64, raw string) (bool, error) {
		var proposal types.Proposal
		if err := json.Unmarshal([]byte(raw), &proposal); err != nil {
			return false, fmt.Errorf("decode proposal: %w", err)
		}
		if !proposal.Status.Terminal() {
			return false, nil
		}
		if proposal.TerminalAtUnix() >= cutoffUnix {
			return false, nil
		}
		eligible = append(eligible, id)
		return false, nil
	})
	if err != nil {
		return 0, err
	}

	sdkCtx, now := contextNow(ctx)
	tiers := k.proposalTiers()
	for _, id := range eligible {
		if err := tiers.Archive(ctx, id, wrapArchived(now.Unix())); err != nil {
			return 0, err
		}
	}

	emitEventIfPossible(sdkCtx, sdk.NewEvent(
		"wallet_proposals_archived",
		sdk.NewAttribute("count", fmt.Sprintf("%d", len(eligible))),
		sdk.NewAttribute("archived_by", caller),
		sdk.NewAttribute("timestamp", fmt.Sprintf("%d", now.Unix())),
	))

	return len(eligible), nil
}

// CleanupExpiredPending lazily transitions stale Pending proposals to
// Expired, then archives them. Owner or Admin only.
func (k Keeper) CleanupExpiredPending(ctx context.Context, caller string) (int, error) {
	if err := k.requireNotPaused(ctx); err != nil {
		return 0, err
	}
	if err := k.requireInitialized(ctx); err != nil {
		return 0, err
	}
	if err := k.requireOwnerOrAdmin(ctx, caller); err != nil {
		return 0, err
	}

	sdkCtx, now := contextNow(ctx)
	nowUnix := now.Unix()

	var stale []types.Proposal
	err := k.Proposals.Walk(ctx, nil, func(_ uint64, raw string) (bool, error) {
		var proposal types.Proposal
		if err := json.Unmarshal([]byte(raw), &proposal); err != nil {
			return false, fmt.Errorf("decode proposal: %w", err)
		}
		if proposal.Status == types.ProposalStatusPending && nowUnix > proposal.ExpiresAtUnix {
			stale = append(stale, proposal)
		}
		return false, nil
	})
	if err != nil {
		return 0, err
	}

	tiers := k.proposalTiers()
	for _, proposal := range stale {
		proposal.Status = types.ProposalStatusExpired
		proposal.ResolvedAtUnix = nowUnix
		if err := k.setProposal(ctx, proposal); err != nil {
			return 0, err
		}
		if err := tiers.Archive(ctx, proposal.ID, wrapArchived(nowUnix)); err != nil {
			return 0, err
		}
	}

	emitEventIfPossible(sdkCtx, sdk.NewEvent(
		"wallet_expired_cleaned",
		sdk.NewAttribute("count", fmt.Sprintf("%d", len(stale))),
		sdk.NewAttribute("cleaned_by", caller),
		sdk.NewAttribute("timestamp", fmt.Sprintf("%d", nowUnix)),
	))

	return len(stale), nil
}

// RestoreTransaction moves an archived proposal back to the active index.
// Owner or Admin only. The record keeps its terminal status; restoring
// never resurrects executability.
func (k Keeper) RestoreTransaction(ctx context.Context, caller string, id uint64) error {
	if err := k.requireNotPaused(ctx); err != nil {
		return err
	}
	if err := k.requireInitialized(ctx); err != nil {
		return err
	}
	if err := k.requireOwnerOrAdmin(ctx, caller); err != nil {
		return err
	}

	if err := k.proposalTiers().Restore(ctx, id, unwrapArchived); err != nil {
		return errorsmod.Wrapf(types.ErrNotFound, "archived proposal %d", id)
	}

	sdkCtx, now := contextNow(ctx)
	emitEventIfPossible(sdkCtx, sdk.NewEvent(
		"wallet_proposal_restored",
		sdk.NewAttribute("proposal_id", fmt.Sprintf("%d", id)),
		sdk.NewAttribute("restored_by", caller),
		sdk.NewAttribute("timestamp", fmt.Sprintf("%d", now.Unix())),
	))

	return nil
}

// BulkCleanupArchive permanently deletes archive entries archived before
// cutoff. Owner only; deletion is unrecoverable.
func (k Keeper) BulkCleanupArchive(ctx context.Context, caller string, cutoffUnix int64) (int, error) {
	if err := k.requireNotPaused(ctx); err != nil {
		return 0, err
	}
	if err := k.requireInitialized(ctx); err != nil {
		return 0, err
	}
	if err := k.requireOwner(ctx, caller); err != nil {
		return 0, err
	}

	removed, err := k.proposalTiers().CleanupArchiveBefore(ctx, cutoffUnix, archivedAtStamp)
	if err != nil {
		return 0, err
	}

	sdkCtx, now := contextNow(ctx)
	emitEventIfPossible(sdkCtx, sdk.NewEvent(
		"wallet_archive_cleaned",
		sdk.NewAttribute("count", fmt.Sprintf("%d", removed)),
		sdk.NewAttribute("cleaned_by", caller),
		sdk.NewAttribute("timestamp", fmt.Sprintf("%d", now.Unix())),
	))

	return removed, nil
}

// GetArchivedTransactions lists up to limit archive entries.
func (k Keeper) GetArchivedTransactions(ctx context.Context, limit int) ([]types.ArchivedProposal, error) {
	if err := k.requireInitialized(ctx); err != nil {
		return nil, err
	}

	var out []types.ArchivedProposal
	err := k.proposalTiers().WalkArchived(ctx, func(_ uint64, raw string) (bool, error) {
		if limit > 0 && len(out) >= limit {
			return true, nil
		}
		var archived types.ArchivedProposal
		if err := json.Unmarshal([]byte(raw), &archived); err != nil {
			return false, fmt.Errorf("decode archived proposal: %w", err)
		}
		out = append(out, archived)
		return false, nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// GetStorageStats reports active and archive tier sizes.
func (k Keeper) GetStorageStats(ctx context.Context) (types.StorageStats, error) {
	if err := k.requireInitialized(ctx); err != nil {
		return types.StorageStats{}, err
	}

	pending := 0
	terminal := 0
	err := k.Proposals.Walk(ctx, nil, func(_ uint64, raw string) (bool, error) {
		var proposal types.Proposal
		if err := json.Unmarshal([]byte(raw), &proposal); err != nil {
			return false, fmt.Errorf("decode proposal: %w", err)
		}
		if proposal.Status == types.ProposalStatusPending {
			pending++
		} else {
			terminal++
		}
		return false, nil
	})
	if err != nil {
		return types.StorageStats{}, err
	}

	archived := 0
	err = k.ArchivedProposals.Walk(ctx, nil, func(_ uint64, _ string) (bool, error) {
		archived++
		return false, nil
	})
	if err != nil {
		return types.StorageStats{}, err
	}

	members, err := k.countMembers(ctx)
	if err != nil {
		return types.StorageStats{}, err
	}

	_, now := contextNow(ctx)
	return types.StorageStats{
		PendingProposals:  pending,
		TerminalProposals: terminal,
		ArchivedProposals: archived,
		TotalMembers:      members,
		LastUpdatedUnix:   now.Unix(),
	}, nil
}
