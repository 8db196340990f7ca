// Package boost implements the booster store flows: reading the store and a
// buyer's boosters, and preparing, submitting and confirming purchases.
package boost

import (
	"context"
	"crypto/ed25519"
	"math"
	"sort"
	"time"

	"github.com/mr-tron/base58"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/code-payments/code-boost/pkg/retry"
	"github.com/code-payments/code-boost/pkg/retry/backoff"
	"github.com/code-payments/code-boost/pkg/solana"
	"github.com/code-payments/code-boost/pkg/solana/accounts"
	"github.com/code-payments/code-boost/pkg/solana/booster"
	"github.com/code-payments/code-boost/pkg/solana/confirmation"
	"github.com/code-payments/code-boost/pkg/sync"
)

const purchaseLockStripes = 64

// Service runs booster store flows against a ledger. It is safe for
// concurrent use. Purchases by the same buyer are serialized.
type Service struct {
	log     *logrus.Entry
	conf    *conf
	client  solana.Client
	store   *accounts.Store
	tracker *confirmation.Tracker

	program         ed25519.PublicKey
	storeConfig     solana.DerivedAddress
	retryStrategies []retry.Strategy
	purchaseLocks   *sync.StripedLock
}

type Option func(*Service)

// WithRetryStrategies replaces the strategies used to retry transport
// failures. Only transport failures are ever retried.
func WithRetryStrategies(strategies ...retry.Strategy) Option {
	return func(s *Service) {
		s.retryStrategies = strategies
	}
}

func New(client solana.Client, configProvider ConfigProvider, opts ...Option) (*Service, error) {
	conf := configProvider()
	ctx := context.Background()

	program, err := base58.Decode(conf.programID.Get(ctx))
	if err != nil || len(program) != ed25519.PublicKeySize {
		return nil, errors.Errorf("invalid program id %q", conf.programID.Get(ctx))
	}

	commitment, err := solana.CommitmentFromString(conf.commitment.Get(ctx))
	if err != nil {
		return nil, err
	}

	storeConfig, err := booster.GetStoreConfigAddress(program)
	if err != nil {
		return nil, errors.Wrap(err, "error deriving store config address")
	}

	s := &Service{
		log:    logrus.StandardLogger().WithField("type", "boost/service"),
		conf:   conf,
		client: client,
		store:  accounts.NewStore(client, accounts.WithCommitment(commitment)),
		tracker: confirmation.NewTracker(
			client,
			confirmation.WithCommitment(commitment),
			confirmation.WithPollInterval(conf.pollInterval.Get(ctx)),
		),
		program:       program,
		storeConfig:   storeConfig,
		purchaseLocks: sync.NewStripedLock(purchaseLockStripes),
	}

	if limit := conf.computeUnitLimit.Get(ctx); limit > math.MaxUint32 {
		return nil, errors.Wrapf(ErrInvalidComputeUnitLimit, "%d", limit)
	}

	transportAttempts := conf.maxTransportAttempts.Get(ctx)
	if transportAttempts == 0 {
		transportAttempts = 1
	}
	s.retryStrategies = []retry.Strategy{
		retry.RetriableErrors(accounts.ErrTransport),
		retry.Limit(uint(transportAttempts)),
		retry.BackoffWithJitter(backoff.BinaryExponential(250*time.Millisecond), 2*time.Second, 0.1),
	}

	for _, o := range opts {
		o(s)
	}
	return s, nil
}

// Program is the booster program the service talks to.
func (s *Service) Program() ed25519.PublicKey {
	return s.program
}

// StoreConfigAddress is the address of the store's config account.
func (s *Service) StoreConfigAddress() solana.DerivedAddress {
	return s.storeConfig
}

// GetStoreConfig reads the store's configuration and counters.
func (s *Service) GetStoreConfig(ctx context.Context) (*booster.StoreConfigAccount, error) {
	var config booster.StoreConfigAccount
	err := s.withRetry(ctx, func() error {
		return s.store.FetchOne(ctx, s.storeConfig.Address, &config)
	})
	if err != nil {
		return nil, err
	}
	return &config, nil
}

// GetBoosters returns every booster owned by owner, oldest first. A nil owner
// returns every booster in the store.
func (s *Service) GetBoosters(ctx context.Context, owner ed25519.PublicKey) ([]*booster.BoosterAccount, error) {
	var keyed []accounts.KeyedAccount[booster.BoosterAccount]
	err := s.withRetry(ctx, func() (err error) {
		keyed, err = accounts.FetchMany[booster.BoosterAccount](ctx, s.store, s.program, booster.BoosterAccountFilters(owner)...)
		return err
	})
	if err != nil {
		return nil, err
	}

	boosters := make([]*booster.BoosterAccount, len(keyed))
	for i, k := range keyed {
		boosters[i] = k.Account
	}
	sort.SliceStable(boosters, func(i, j int) bool {
		if boosters[i].PurchasedAt != boosters[j].PurchasedAt {
			return boosters[i].PurchasedAt < boosters[j].PurchasedAt
		}
		return base58.Encode(boosters[i].Address) < base58.Encode(boosters[j].Address)
	})
	return boosters, nil
}

// GetActiveBoosters returns owner's boosters that are current at now.
func (s *Service) GetActiveBoosters(ctx context.Context, owner ed25519.PublicKey, now time.Time) ([]*booster.BoosterAccount, error) {
	boosters, err := s.GetBoosters(ctx, owner)
	if err != nil {
		return nil, err
	}

	var active []*booster.BoosterAccount
	for _, b := range boosters {
		if b.IsCurrent(now) {
			active = append(active, b)
		}
	}
	return active, nil
}

// QuoteBooster prices a booster against the current store config.
func (s *Service) QuoteBooster(ctx context.Context, boosterType booster.BoosterType, hours uint32) (*Quote, error) {
	config, err := s.GetStoreConfig(ctx)
	if err != nil {
		return nil, err
	}
	return quote(config, boosterType, hours)
}

func quote(config *booster.StoreConfigAccount, boosterType booster.BoosterType, hours uint32) (*Quote, error) {
	if !boosterType.IsValid() {
		return nil, booster.ErrInvalidBoosterType
	}
	if hours == 0 {
		return nil, ErrInvalidDuration
	}

	price, err := config.BoosterPrice(boosterType, hours)
	if err != nil {
		return nil, err
	}

	return &Quote{
		BoosterType:   boosterType,
		Hours:         hours,
		Price:         price,
		MultiplierBps: config.MultiplierBps(boosterType),
	}, nil
}

func (s *Service) withRetry(ctx context.Context, action retry.Action) error {
	_, err := retry.Retry(ctx, action, s.retryStrategies...)
	return err
}
