package boost

import (
	"bytes"
	"context"
	"crypto/ed25519"
	"fmt"
	"math"

	"github.com/google/uuid"
	"github.com/mr-tron/base58"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/code-payments/code-boost/pkg/metrics"
	"github.com/code-payments/code-boost/pkg/solana"
	"github.com/code-payments/code-boost/pkg/solana/accounts"
	"github.com/code-payments/code-boost/pkg/solana/booster"
	"github.com/code-payments/code-boost/pkg/solana/computebudget"
	"github.com/code-payments/code-boost/pkg/solana/confirmation"
	"github.com/code-payments/code-boost/pkg/solana/memo"
)

const (
	purchaseOutcomeEventName = "BoosterStorePurchase"
	memoPrefix               = "boost"
)

// PrepareBoosterPurchase builds an unsigned transaction buying a booster for
// buyer, against the store's current counter.
func (s *Service) PrepareBoosterPurchase(ctx context.Context, buyer ed25519.PublicKey, boosterType booster.BoosterType, hours uint32) (*PreparedPurchase, error) {
	return s.prepareBoosterPurchase(ctx, uuid.New().String(), buyer, boosterType, hours)
}

func (s *Service) prepareBoosterPurchase(ctx context.Context, flowID string, buyer ed25519.PublicKey, boosterType booster.BoosterType, hours uint32) (*PreparedPurchase, error) {
	config, err := s.getActiveStoreConfig(ctx)
	if err != nil {
		return nil, err
	}

	q, err := quote(config, boosterType, hours)
	if err != nil {
		return nil, err
	}

	boosterAddress, err := booster.GetBoosterAddress(s.program, &booster.GetBoosterAddressArgs{
		Buyer:     buyer,
		TotalSold: config.TotalBoostersSold,
	})
	if err != nil {
		return nil, errors.Wrap(err, "error deriving booster address")
	}

	ixn := booster.NewPurchaseBoosterInstruction(
		s.program,
		&booster.PurchaseBoosterInstructionAccounts{
			StoreConfig: s.storeConfig.Address,
			Booster:     boosterAddress.Address,
			Buyer:       buyer,
			Treasury:    config.Treasury,
		},
		&booster.PurchaseBoosterInstructionArgs{
			BoosterType:   boosterType,
			DurationHours: hours,
		},
	)

	txn, err := s.compile(ctx, flowID, buyer, ixn)
	if err != nil {
		return nil, err
	}

	return &PreparedPurchase{
		FlowID:      flowID,
		Transaction: txn,
		Buyer:       buyer,
		Price:       q.Price,
		Booster:     &boosterAddress,
		BoosterType: boosterType,
		Hours:       hours,
		TotalSold:   config.TotalBoostersSold,
	}, nil
}

// PreparePointsPackPurchase builds an unsigned transaction buying a points
// pack for buyer.
func (s *Service) PreparePointsPackPurchase(ctx context.Context, buyer ed25519.PublicKey, size booster.PackSize) (*PreparedPurchase, error) {
	return s.preparePointsPackPurchase(ctx, uuid.New().String(), buyer, size)
}

func (s *Service) preparePointsPackPurchase(ctx context.Context, flowID string, buyer ed25519.PublicKey, size booster.PackSize) (*PreparedPurchase, error) {
	config, err := s.getActiveStoreConfig(ctx)
	if err != nil {
		return nil, err
	}

	price, points, err := config.Pack(size)
	if err != nil {
		return nil, err
	}

	ixn := booster.NewPurchasePointsPackInstruction(
		s.program,
		&booster.PurchasePointsPackInstructionAccounts{
			StoreConfig: s.storeConfig.Address,
			Buyer:       buyer,
			Treasury:    config.Treasury,
		},
		&booster.PurchasePointsPackInstructionArgs{
			PackSize: size,
		},
	)

	txn, err := s.compile(ctx, flowID, buyer, ixn)
	if err != nil {
		return nil, err
	}

	return &PreparedPurchase{
		FlowID:      flowID,
		Transaction: txn,
		Buyer:       buyer,
		Price:       price,
		PackSize:    size,
		Points:      points,
		TotalSold:   config.TotalBoostersSold,
	}, nil
}

// PurchaseBooster buys a booster end to end: prepare, sign, submit, confirm,
// and read the booster back.
//
// An error is returned only when nothing was submitted, or ctx ended. Once a
// transaction is submitted, the result's Outcome says what happened to it.
//
// If the submission is rejected because another purchase advanced the store's
// counter first, the purchase is prepared and signed again against the new
// counter, up to the configured attempt limit.
func (s *Service) PurchaseBooster(ctx context.Context, buyer ed25519.PublicKey, signer Signer, boosterType booster.BoosterType, hours uint32) (*PurchaseResult, error) {
	flowID := uuid.New().String()
	log := s.log.WithFields(logrus.Fields{
		"method":       "PurchaseBooster",
		"flow_id":      flowID,
		"buyer":        base58.Encode(buyer),
		"booster_type": boosterType.String(),
		"hours":        hours,
	})

	unlock := s.purchaseLocks.Lock(buyer)
	defer unlock()

	maxAttempts := int(s.conf.maxPurchaseAttempts.Get(ctx))

	var prepared *PreparedPurchase
	var result *PurchaseResult
	for attempt := 1; ; attempt++ {
		var err error
		prepared, err = s.prepareBoosterPurchase(ctx, flowID, buyer, boosterType, hours)
		if err != nil {
			log.WithError(err).Info("failed to prepare purchase")
			return nil, err
		}

		result, err = s.complete(ctx, log.WithField("attempt", attempt), prepared, signer)
		if err != nil {
			return result, err
		}
		result.Attempts = attempt

		if !errors.Is(result.Err, ErrStaleStoreCounter) || attempt >= maxAttempts {
			break
		}
		log.WithField("attempt", attempt).Info("store counter advanced, retrying purchase")
	}

	if result.Outcome == OutcomeSucceeded {
		result.Booster = s.readBackBooster(ctx, log, prepared.Booster.Address)
	}

	s.recordOutcome(ctx, "booster", result)
	return result, nil
}

// PurchasePointsPack buys a points pack end to end. Results are as for
// PurchaseBooster.
func (s *Service) PurchasePointsPack(ctx context.Context, buyer ed25519.PublicKey, signer Signer, size booster.PackSize) (*PurchaseResult, error) {
	flowID := uuid.New().String()
	log := s.log.WithFields(logrus.Fields{
		"method":    "PurchasePointsPack",
		"flow_id":   flowID,
		"buyer":     base58.Encode(buyer),
		"pack_size": size.String(),
	})

	unlock := s.purchaseLocks.Lock(buyer)
	defer unlock()

	prepared, err := s.preparePointsPackPurchase(ctx, flowID, buyer, size)
	if err != nil {
		log.WithError(err).Info("failed to prepare purchase")
		return nil, err
	}

	result, err := s.complete(ctx, log, prepared, signer)
	if err != nil {
		return result, err
	}
	result.Attempts = 1

	s.recordOutcome(ctx, "points_pack", result)
	return result, nil
}

// Submit sends signed transaction bytes, retrying transport failures with the
// service's retry strategies.
func (s *Service) Submit(ctx context.Context, signed []byte) (solana.Signature, error) {
	var sig solana.Signature
	err := s.withRetry(ctx, func() (err error) {
		sig, err = s.store.Submit(ctx, signed)
		return err
	})
	return sig, err
}

// Confirm waits for sig using the configured timeout.
func (s *Service) Confirm(ctx context.Context, sig solana.Signature) (*confirmation.Outcome, error) {
	return s.tracker.Track(ctx, sig, s.conf.confirmTimeout.Get(ctx))
}

// complete signs, submits and confirms a prepared purchase.
func (s *Service) complete(ctx context.Context, log *logrus.Entry, prepared *PreparedPurchase, signer Signer) (*PurchaseResult, error) {
	signed, err := s.sign(ctx, prepared, signer)
	if err != nil {
		log.WithError(err).Info("transaction not signed")
		return nil, err
	}

	result := &PurchaseResult{
		FlowID: prepared.FlowID,
		Points: prepared.Points,
	}

	result.Signature, err = s.Submit(ctx, signed)
	log = log.WithField("signature", result.Signature.String())
	switch {
	case err == nil:
	case errors.Is(err, accounts.ErrRejected):
		log.WithError(err).Info("purchase rejected")
		result.Outcome = OutcomeFailed
		result.Err = err
		if prepared.Booster != nil && s.counterAdvanced(ctx, prepared) {
			result.Err = &staleCounterError{cause: err}
		}
		return result, nil
	case ctx.Err() != nil:
		result.Outcome = OutcomeUnknown
		return result, ctx.Err()
	default:
		// The transaction may have reached the node.
		log.WithError(err).Warn("purchase submission failed")
		result.Outcome = OutcomeUnknown
		result.Err = err
		return result, nil
	}

	outcome, err := s.Confirm(ctx, result.Signature)
	switch {
	case err == nil && outcome.State == confirmation.StateConfirmed:
		log.Info("purchase confirmed")
		result.Outcome = OutcomeSucceeded
	case err == nil:
		log.WithError(outcome.Err).Info("purchase failed on chain")
		result.Outcome = OutcomeFailed
		result.Err = outcome.Err
		if prepared.Booster != nil && s.counterAdvanced(ctx, prepared) {
			result.Err = &staleCounterError{cause: outcome.Err}
		}
	case errors.Is(err, confirmation.ErrTimedOut):
		log.Warn("purchase confirmation timed out")
		result.Outcome = OutcomeUnknown
		result.Err = err
	default:
		result.Outcome = OutcomeUnknown
		return result, err
	}
	return result, nil
}

// sign hands the unsigned transaction to the signer, and checks that what
// comes back is the same message fully and validly signed.
func (s *Service) sign(ctx context.Context, prepared *PreparedPurchase, signer Signer) ([]byte, error) {
	signed, err := signer.SignTransaction(ctx, prepared.Transaction)
	if err != nil {
		return nil, err
	}

	var unsignedTxn, signedTxn solana.Transaction
	if err := unsignedTxn.Unmarshal(prepared.Transaction); err != nil {
		return nil, errors.Wrap(err, "invalid prepared transaction")
	}
	if err := signedTxn.Unmarshal(signed); err != nil {
		return nil, errors.Wrap(err, "signer returned an invalid transaction")
	}

	if !bytes.Equal(unsignedTxn.Message.Marshal(), signedTxn.Message.Marshal()) {
		return nil, ErrSignerTampered
	}
	if !signedTxn.Signed() {
		return nil, accounts.ErrNotSigned
	}
	if err := signedTxn.VerifySignatures(); err != nil {
		return nil, err
	}
	return signed, nil
}

func (s *Service) compile(ctx context.Context, flowID string, buyer ed25519.PublicKey, ixn solana.Instruction) ([]byte, error) {
	var blockhash solana.Blockhash
	err := s.withRetry(ctx, func() (err error) {
		blockhash, err = s.client.GetLatestBlockhash(ctx)
		if err != nil {
			return &accounts.TransportError{Op: "get latest blockhash", Err: err}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	limit := s.conf.computeUnitLimit.Get(ctx)
	if limit > math.MaxUint32 {
		return nil, errors.Wrapf(ErrInvalidComputeUnitLimit, "%d", limit)
	}

	ixns := computebudget.PriorityFee(uint32(limit), s.conf.computeUnitPrice.Get(ctx))
	ixns = append(ixns, ixn)
	if s.conf.enableMemo.Get(ctx) {
		ixns = append(ixns, memo.Instruction(fmt.Sprintf("%s:%s", memoPrefix, flowID)))
	}

	txn, err := solana.Compile(buyer, blockhash, ixns...)
	if err != nil {
		return nil, err
	}
	return txn.Marshal(), nil
}

func (s *Service) getActiveStoreConfig(ctx context.Context) (*booster.StoreConfigAccount, error) {
	config, err := s.GetStoreConfig(ctx)
	if err != nil {
		return nil, err
	}
	if !config.IsActive {
		return nil, ErrStoreInactive
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// counterAdvanced reports whether the store sold a booster since prepared was
// built, which moves the address the program expects the booster at.
func (s *Service) counterAdvanced(ctx context.Context, prepared *PreparedPurchase) bool {
	s.store.Invalidate(s.storeConfig.Address)

	config, err := s.GetStoreConfig(ctx)
	if err != nil {
		return false
	}
	return config.TotalBoostersSold != prepared.TotalSold
}

// readBackBooster fetches the purchased booster. The purchase has already
// succeeded, so failures are only logged.
func (s *Service) readBackBooster(ctx context.Context, log *logrus.Entry, address ed25519.PublicKey) *booster.BoosterAccount {
	s.store.Invalidate(address)

	var purchased booster.BoosterAccount
	err := s.withRetry(ctx, func() error {
		return s.store.FetchOne(ctx, address, &purchased)
	})
	if err != nil {
		log.WithError(err).Warn("failed to read back purchased booster")
		return nil
	}
	return &purchased
}

func (s *Service) recordOutcome(ctx context.Context, product string, result *PurchaseResult) {
	metrics.RecordEvent(ctx, purchaseOutcomeEventName, map[string]interface{}{
		"flow_id":   result.FlowID,
		"product":   product,
		"outcome":   result.Outcome,
		"attempts":  result.Attempts,
		"signature": result.Signature,
		"error":     result.Err,
	})
}
