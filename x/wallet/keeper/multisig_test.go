package keeper_test

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/remitwise/remitwise/x/wallet/types"
)

func TestConfigureMultisigValidation(t *testing.T) {
	k, ctx, _ := setupWallet(t)

	err := k.ConfigureMultisig(ctx, "owner", 0, []string{"alice"}, true)
	require.ErrorIs(t, err, types.ErrInvalidThreshold)

	err = k.ConfigureMultisig(ctx, "owner", 3, []string{"alice", "bob"}, true)
	require.ErrorIs(t, err, types.ErrInvalidThreshold)

	err = k.ConfigureMultisig(ctx, "owner", 1, []string{"ghost"}, true)
	require.ErrorIs(t, err, types.ErrNotFound)

	err = k.ConfigureMultisig(ctx, "alice", 2, []string{"alice", "bob"}, true)
	require.ErrorIs(t, err, types.ErrUnauthorized)

	require.NoError(t, k.ConfigureMultisig(ctx, "owner", 2, []string{"alice", "bob", "carol"}, false))

	config, err := k.GetMultisigConfig(ctx)
	require.NoError(t, err)
	require.Equal(t, 2, config.Threshold)
	require.False(t, config.ProposerSelfSigns)
}

// End-to-end walkthrough: threshold 2 over {alice, bob, carol} with
// no proposer self-signature. alice proposes 500, alice signs (1),
// bob signs (2) and the transfer executes inside bob's call; carol's
// late signature hits a terminal proposal.
func TestProposeSignExecuteWalkthrough(t *testing.T) {
	k, ctx, bank := setupWallet(t)
	require.NoError(t, k.ConfigureMultisig(ctx, "owner", 2, []string{"alice", "bob", "carol"}, false))

	id, err := k.ProposeTransaction(ctx, "alice", types.Action{
		Kind:      types.ActionTransfer,
		Recipient: "landlord",
		Amount:    "500",
	})
	require.NoError(t, err)
	require.Equal(t, uint64(1), id)

	proposal, err := k.GetProposal(ctx, id)
	require.NoError(t, err)
	require.Empty(t, proposal.Signatures)
	require.Equal(t, types.ProposalStatusPending, proposal.Status)

	require.NoError(t, k.SignTransaction(ctx, "alice", id))
	proposal, err = k.GetProposal(ctx, id)
	require.NoError(t, err)
	require.Len(t, proposal.Signatures, 1)
	require.Equal(t, types.ProposalStatusPending, proposal.Status)
	require.Empty(t, bank.transfers)

	require.NoError(t, k.SignTransaction(ctx, "bob", id))
	proposal, err = k.GetProposal(ctx, id)
	require.NoError(t, err)
	require.Equal(t, types.ProposalStatusExecuted, proposal.Status)
	require.Len(t, bank.transfers, 1)
	require.Equal(t, int64(500), bank.transfers[0].amount.Int64())

	err = k.SignTransaction(ctx, "carol", id)
	require.ErrorIs(t, err, types.ErrInvalidProposalState)
}

func TestProposerSelfSignPolicyCountsProposer(t *testing.T) {
	k, ctx, bank := setupWallet(t)
	// Default config: threshold 2, self-sign on.
	id, err := k.ProposeTransaction(ctx, "alice", types.Action{
		Kind:      types.ActionTransfer,
		Recipient: "landlord",
		Amount:    "500",
	})
	require.NoError(t, err)

	proposal, err := k.GetProposal(ctx, id)
	require.NoError(t, err)
	require.Equal(t, []string{"alice"}, proposal.Signatures)

	// One more signature completes the threshold.
	require.NoError(t, k.SignTransaction(ctx, "bob", id))
	require.Len(t, bank.transfers, 1)
}

func TestSelfSignWithThresholdOneExecutesOnPropose(t *testing.T) {
	k, ctx, bank := setupWallet(t)
	require.NoError(t, k.ConfigureMultisig(ctx, "owner", 1, []string{"alice", "bob"}, true))

	id, err := k.ProposeTransaction(ctx, "alice", types.Action{
		Kind:      types.ActionTransfer,
		Recipient: "landlord",
		Amount:    "42",
	})
	require.NoError(t, err)
	require.Len(t, bank.transfers, 1)

	proposal, err := k.GetProposal(ctx, id)
	require.NoError(t, err)
	require.Equal(t, types.ProposalStatusExecuted, proposal.Status)
}

func TestSignTwiceFailsAlreadySigned(t *testing.T) {
	k, ctx, _ := setupWallet(t)
	require.NoError(t, k.ConfigureMultisig(ctx, "owner", 3, []string{"alice", "bob", "carol"}, false))

	id, err := k.ProposeTransaction(ctx, "alice", types.Action{
		Kind:      types.ActionTransfer,
		Recipient: "landlord",
		Amount:    "500",
	})
	require.NoError(t, err)

	require.NoError(t, k.SignTransaction(ctx, "alice", id))
	err = k.SignTransaction(ctx, "alice", id)
	require.ErrorIs(t, err, types.ErrAlreadySigned)

	// State changed exactly once.
	proposal, err := k.GetProposal(ctx, id)
	require.NoError(t, err)
	require.Len(t, proposal.Signatures, 1)
}

func TestSignUnknownProposalFailsNotFound(t *testing.T) {
	k, ctx, _ := setupWallet(t)
	err := k.SignTransaction(ctx, "alice", 99)
	require.ErrorIs(t, err, types.ErrNotFound)
}

func TestNonSignerCannotProposeOrSign(t *testing.T) {
	k, ctx, _ := setupWallet(t)
	require.NoError(t, k.ConfigureMultisig(ctx, "owner", 2, []string{"alice", "bob"}, false))

	_, err := k.ProposeTransaction(ctx, "carol", types.Action{
		Kind:      types.ActionTransfer,
		Recipient: "landlord",
		Amount:    "500",
	})
	require.ErrorIs(t, err, types.ErrNotASigner)

	id, err := k.ProposeTransaction(ctx, "alice", types.Action{
		Kind:      types.ActionTransfer,
		Recipient: "landlord",
		Amount:    "500",
	})
	require.NoError(t, err)

	err = k.SignTransaction(ctx, "carol", id)
	require.ErrorIs(t, err, types.ErrNotASigner)
}

func TestSignAfterWindowExpiresProposalLazily(t *testing.T) {
	k, ctx, _ := setupWallet(t)
	require.NoError(t, k.ConfigureMultisig(ctx, "owner", 2, []string{"alice", "bob"}, false))

	id, err := k.ProposeTransaction(ctx, "alice", types.Action{
		Kind:      types.ActionTransfer,
		Recipient: "landlord",
		Amount:    "500",
	})
	require.NoError(t, err)

	late := ctx.WithBlockTime(ctx.BlockTime().Add((types.SignatureWindowSeconds + 1) * time.Second))

	// Before any observation the stored status is still Pending but the
	// read path already reports Expired.
	proposal, err := k.GetProposal(late, id)
	require.NoError(t, err)
	require.Equal(t, types.ProposalStatusExpired, proposal.Status)

	err = k.SignTransaction(late, "bob", id)
	require.ErrorIs(t, err, types.ErrProposalExpired)

	// The sign attempt persisted the transition; further signing now
	// hits the terminal state.
	err = k.SignTransaction(late, "alice", id)
	require.ErrorIs(t, err, types.ErrInvalidProposalState)
}

func TestCancelTransaction(t *testing.T) {
	k, ctx, _ := setupWallet(t)
	require.NoError(t, k.ConfigureMultisig(ctx, "owner", 2, []string{"alice", "bob"}, false))

	id, err := k.ProposeTransaction(ctx, "alice", types.Action{
		Kind:      types.ActionTransfer,
		Recipient: "landlord",
		Amount:    "500",
	})
	require.NoError(t, err)

	err = k.CancelTransaction(ctx, "bob", id)
	require.ErrorIs(t, err, types.ErrUnauthorized)

	require.NoError(t, k.CancelTransaction(ctx, "alice", id))

	proposal, err := k.GetProposal(ctx, id)
	require.NoError(t, err)
	require.Equal(t, types.ProposalStatusCancelled, proposal.Status)

	err = k.CancelTransaction(ctx, "alice", id)
	require.ErrorIs(t, err, types.ErrInvalidProposalState)
}

func TestOwnerCanCancelAnyPendingProposal(t *testing.T) {
	k, ctx, _ := setupWallet(t)
	require.NoError(t, k.ConfigureMultisig(ctx, "owner", 2, []string{"alice", "bob"}, false))

	id, err := k.ProposeTransaction(ctx, "alice", types.Action{
		Kind:      types.ActionTransfer,
		Recipient: "landlord",
		Amount:    "500",
	})
	require.NoError(t, err)
	require.NoError(t, k.CancelTransaction(ctx, "owner", id))
}

func TestProposalIDsAreMonotonicAndNeverReused(t *testing.T) {
	k, ctx, _ := setupWallet(t)
	require.NoError(t, k.ConfigureMultisig(ctx, "owner", 2, []string{"alice", "bob"}, false))

	action := types.Action{Kind: types.ActionTransfer, Recipient: "x", Amount: "1"}

	id1, err := k.ProposeTransaction(ctx, "alice", action)
	require.NoError(t, err)
	require.NoError(t, k.CancelTransaction(ctx, "alice", id1))

	// Archive and purge the cancelled proposal, then propose again: the
	// sequence keeps climbing.
	cutoff := ctx.BlockTime().Unix() + 1
	_, err = k.ArchiveOldTransactions(ctx, "owner", cutoff)
	require.NoError(t, err)
	_, err = k.BulkCleanupArchive(ctx, "owner", cutoff+1)
	require.NoError(t, err)

	id2, err := k.ProposeTransaction(ctx, "alice", action)
	require.NoError(t, err)
	require.Equal(t, id1+1, id2)
}

func TestRoleChangeProposalExecutes(t *testing.T) {
	k, ctx, _ := setupWallet(t)
	require.NoError(t, k.ConfigureMultisig(ctx, "owner", 2, []string{"alice", "bob"}, true))

	id, err := k.ProposeTransaction(ctx, "alice", types.Action{
		Kind:   types.ActionRoleChange,
		Member: "carol",
		Role:   types.RoleAdmin,
	})
	require.NoError(t, err)
	require.NoError(t, k.SignTransaction(ctx, "bob", id))

	carol, err := k.GetMember(ctx, "carol")
	require.NoError(t, err)
	require.Equal(t, types.RoleAdmin, carol.Role)
}

func TestConfigChangeProposalReplacesSignerSet(t *testing.T) {
	k, ctx, _ := setupWallet(t)
	require.NoError(t, k.ConfigureMultisig(ctx, "owner", 2, []string{"alice", "bob"}, true))

	id, err := k.ProposeTransaction(ctx, "alice", types.Action{
		Kind:      types.ActionConfigChange,
		Threshold: 3,
		Signers:   []string{"alice", "bob", "carol"},
	})
	require.NoError(t, err)
	require.NoError(t, k.SignTransaction(ctx, "bob", id))

	config, err := k.GetMultisigConfig(ctx)
	require.NoError(t, err)
	require.Equal(t, 3, config.Threshold)
	require.Len(t, config.Signers, 3)

	// The executed proposal is untouched by its own config change.
	proposal, err := k.GetProposal(ctx, id)
	require.NoError(t, err)
	require.Equal(t, types.ProposalStatusExecuted, proposal.Status)
}

func TestSignatureOrderDoesNotAffectOutcome(t *testing.T) {
	for _, order := range [][]string{{"alice", "bob"}, {"bob", "alice"}} {
		k, ctx, bank := setupWallet(t)
		require.NoError(t, k.ConfigureMultisig(ctx, "owner", 2, []string{"alice", "bob", "carol"}, false))

		id, err := k.ProposeTransaction(ctx, "carol", types.Action{
			Kind:      types.ActionTransfer,
			Recipient: "landlord",
			Amount:    "500",
		})
		require.NoError(t, err)

		for _, signer := range order {
			require.NoError(t, k.SignTransaction(ctx, signer, id))
		}
		proposal, err := k.GetProposal(ctx, id)
		require.NoError(t, err)
		require.Equal(t, types.ProposalStatusExecuted, proposal.Status)
		require.Len(t, bank.transfers, 1)
	}
}

func TestFailedExecutionLeavesProposalPending(t *testing.T) {
	k, ctx, bank := setupWallet(t)
	require.NoError(t, k.ConfigureMultisig(ctx, "owner", 2, []string{"alice", "bob"}, false))

	id, err := k.ProposeTransaction(ctx, "alice", types.Action{
		Kind:      types.ActionTransfer,
		Recipient: "landlord",
		Amount:    "500",
	})
	require.NoError(t, err)
	require.NoError(t, k.SignTransaction(ctx, "alice", id))

	bank.failWith = fmt.Errorf("insufficient balance")
	err = k.SignTransaction(ctx, "bob", id)
	require.ErrorIs(t, err, types.ErrInsufficientFunds)

	// The crossing signature was not recorded; the proposal can still
	// execute once the transfer succeeds.
	bank.failWith = nil
	proposal, err := k.GetProposal(ctx, id)
	require.NoError(t, err)
	require.Equal(t, types.ProposalStatusPending, proposal.Status)
	require.Len(t, proposal.Signatures, 1)

	require.NoError(t, k.SignTransaction(ctx, "bob", id))
	proposal, err = k.GetProposal(ctx, id)
	require.NoError(t, err)
	require.Equal(t, types.ProposalStatusExecuted, proposal.Status)
}

func TestProposeRejectsInvalidActions(t *testing.T) {
	k, ctx, _ := setupWallet(t)

	_, err := k.ProposeTransaction(ctx, "alice", types.Action{
		Kind:      types.ActionTransfer,
		Recipient: "",
		Amount:    "100",
	})
	require.ErrorIs(t, err, types.ErrInvalidAction)

	_, err = k.ProposeTransaction(ctx, "alice", types.Action{
		Kind:      types.ActionTransfer,
		Recipient: "landlord",
		Amount:    "-5",
	})
	require.ErrorIs(t, err, types.ErrInvalidAction)

	_, err = k.ProposeTransaction(ctx, "alice", types.Action{
		Kind:      types.ActionEmergencyTransfer,
		Recipient: "landlord",
		Amount:    "100",
	})
	require.ErrorIs(t, err, types.ErrInvalidAction)
}
