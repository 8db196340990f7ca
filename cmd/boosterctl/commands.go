package main

import (
	"crypto/ed25519"
	"encoding/base64"
	"flag"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/mr-tron/base58"
	"github.com/pkg/errors"

	"github.com/code-payments/code-boost/pkg/boost"
	"github.com/code-payments/code-boost/pkg/solana"
	"github.com/code-payments/code-boost/pkg/solana/booster"
	"github.com/code-payments/code-boost/pkg/solana/metadata"
)

const defaultShutdownTimeout = 5 * time.Second

func runStore(e *env, args []string) error {
	fs := flag.NewFlagSet("store", flag.ExitOnError)
	hours := fs.Uint("hours", 1, "duration to quote boosters for")
	_ = fs.Parse(args)

	config, err := e.service.GetStoreConfig(e.ctx)
	if err != nil {
		return err
	}
	fmt.Println(config.String())

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	defer w.Flush()

	fmt.Fprintln(w, "TYPE\tHOURS\tPRICE (SOL)\tMULTIPLIER")
	for _, t := range booster.AllBoosterTypes {
		q, err := e.service.QuoteBooster(e.ctx, t, uint32(*hours))
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "%s\t%d\t%s\t%sx\n", t, q.Hours, q.PriceSOL(), q.Multiplier())
	}
	return nil
}

func runBoosters(e *env, args []string) error {
	fs := flag.NewFlagSet("boosters", flag.ExitOnError)
	owner := fs.String("owner", "", "booster owner (default: all owners)")
	active := fs.Bool("active", false, "only show boosters that are currently active")
	_ = fs.Parse(args)

	var ownerKey ed25519.PublicKey
	if len(*owner) > 0 {
		var err error
		if ownerKey, err = parseKey(*owner); err != nil {
			return err
		}
	}

	now := time.Now()

	var boosters []*booster.BoosterAccount
	var err error
	if *active {
		boosters, err = e.service.GetActiveBoosters(e.ctx, ownerKey, now)
	} else {
		boosters, err = e.service.GetBoosters(e.ctx, ownerKey)
	}
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	defer w.Flush()

	fmt.Fprintln(w, "ADDRESS\tOWNER\tTYPE\tMULTIPLIER\tEXPIRES\tREMAINING")
	for _, b := range boosters {
		fmt.Fprintf(
			w,
			"%s\t%s\t%s\t%sx\t%s\t%s\n",
			base58.Encode(b.Address),
			base58.Encode(b.Owner),
			b.BoosterType,
			b.MultiplierDecimal(),
			time.Unix(b.ExpiresAt, 0).UTC().Format(time.RFC3339),
			b.Remaining(now).Truncate(time.Second),
		)
	}
	return nil
}

func runDerive(e *env, args []string) error {
	fs := flag.NewFlagSet("derive", flag.ExitOnError)
	buyer := fs.String("buyer", "", "buyer address")
	counter := fs.Int64("counter", -1, "store booster counter (default: current)")
	_ = fs.Parse(args)

	fmt.Printf("program:      %s\n", base58.Encode(e.service.Program()))
	fmt.Printf("store config: %s\n", e.service.StoreConfigAddress())
	if len(*buyer) == 0 {
		return nil
	}

	buyerKey, err := parseKey(*buyer)
	if err != nil {
		return err
	}

	totalSold := uint64(*counter)
	if *counter < 0 {
		config, err := e.service.GetStoreConfig(e.ctx)
		if err != nil {
			return err
		}
		totalSold = config.TotalBoostersSold
	}

	address, err := booster.GetBoosterAddress(e.service.Program(), &booster.GetBoosterAddressArgs{
		Buyer:     buyerKey,
		TotalSold: totalSold,
	})
	if err != nil {
		return err
	}
	fmt.Printf("booster:      %s (counter %d)\n", address, totalSold)
	return nil
}

func runMetadata(e *env, args []string) error {
	fs := flag.NewFlagSet("metadata", flag.ExitOnError)
	mint := fs.String("mint", "", "token mint address")
	_ = fs.Parse(args)

	mintKey, err := parseKey(*mint)
	if err != nil {
		return err
	}

	address, err := metadata.GetMetadataAddress(mintKey)
	if err != nil {
		return err
	}

	var record metadata.Metadata
	if err := e.store.FetchOne(e.ctx, address.Address, &record); err != nil {
		return errors.Wrapf(err, "error fetching metadata at %s", base58.Encode(address.Address))
	}
	fmt.Printf("address: %s\n%s\n", address, record.String())
	return nil
}

func runPrepareBooster(e *env, args []string) error {
	fs := flag.NewFlagSet("prepare-booster", flag.ExitOnError)
	buyer := fs.String("buyer", "", "buyer address")
	boosterType := fs.String("type", "xp", "booster type")
	hours := fs.Uint("hours", 1, "booster duration in hours")
	_ = fs.Parse(args)

	buyerKey, err := parseKey(*buyer)
	if err != nil {
		return err
	}
	t, err := booster.BoosterTypeFromString(*boosterType)
	if err != nil {
		return err
	}

	prepared, err := e.service.PrepareBoosterPurchase(e.ctx, buyerKey, t, uint32(*hours))
	if err != nil {
		return err
	}
	printPrepared(prepared)
	fmt.Printf("booster:     %s\n", prepared.Booster)
	return nil
}

func runPreparePack(e *env, args []string) error {
	fs := flag.NewFlagSet("prepare-pack", flag.ExitOnError)
	buyer := fs.String("buyer", "", "buyer address")
	size := fs.String("size", "small", "pack size")
	_ = fs.Parse(args)

	buyerKey, err := parseKey(*buyer)
	if err != nil {
		return err
	}
	s, err := booster.PackSizeFromString(*size)
	if err != nil {
		return err
	}

	prepared, err := e.service.PreparePointsPackPurchase(e.ctx, buyerKey, s)
	if err != nil {
		return err
	}
	printPrepared(prepared)
	fmt.Printf("points:      %d\n", prepared.Points)
	return nil
}

func runSubmit(e *env, args []string) error {
	fs := flag.NewFlagSet("submit", flag.ExitOnError)
	encoded := fs.String("tx", "", "base64 encoded signed transaction")
	wait := fs.Bool("wait", true, "wait for confirmation")
	_ = fs.Parse(args)

	signed, err := base64.StdEncoding.DecodeString(*encoded)
	if err != nil {
		return errors.Wrap(err, "invalid transaction encoding")
	}

	sig, err := e.service.Submit(e.ctx, signed)
	if err != nil {
		return err
	}
	fmt.Printf("signature: %s\n", sig)

	if !*wait {
		return nil
	}
	return confirm(e, sig)
}

func runConfirm(e *env, args []string) error {
	fs := flag.NewFlagSet("confirm", flag.ExitOnError)
	encoded := fs.String("sig", "", "transaction signature")
	_ = fs.Parse(args)

	raw, err := base58.Decode(*encoded)
	if err != nil || len(raw) != ed25519.SignatureSize {
		return errors.Errorf("invalid signature %q", *encoded)
	}

	var sig solana.Signature
	copy(sig[:], raw)
	return confirm(e, sig)
}

func confirm(e *env, sig solana.Signature) error {
	outcome, err := e.service.Confirm(e.ctx, sig)
	if outcome != nil {
		fmt.Printf("state: %s (polls %d, %s)\n", outcome.State, outcome.Polls, outcome.Elapsed.Truncate(time.Millisecond))
		if outcome.Err != nil {
			fmt.Printf("error: %s\n", outcome.Err)
		}
	}
	return err
}

func printPrepared(prepared *boost.PreparedPurchase) {
	fmt.Printf("flow id:     %s\n", prepared.FlowID)
	fmt.Printf("price:       %s SOL\n", boost.LamportsToSOL(prepared.Price))
	fmt.Printf("transaction: %s\n", base64.StdEncoding.EncodeToString(prepared.Transaction))
}

func parseKey(s string) (ed25519.PublicKey, error) {
	raw, err := base58.Decode(s)
	if err != nil || len(raw) != ed25519.PublicKeySize {
		return nil, errors.Errorf("invalid address %q", s)
	}
	return raw, nil
}
