package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/sawpanic/wfrisk/internal/clock"
	"github.com/sawpanic/wfrisk/internal/daypnl"
	"github.com/sawpanic/wfrisk/internal/feed"
	"github.com/sawpanic/wfrisk/internal/hawkes"
	applog "github.com/sawpanic/wfrisk/internal/log"
	"github.com/sawpanic/wfrisk/internal/orderflow"
	"github.com/sawpanic/wfrisk/internal/risk"
	"github.com/sawpanic/wfrisk/internal/sizing"
	"github.com/sawpanic/wfrisk/internal/telemetry"
	"github.com/sawpanic/wfrisk/internal/wfconfig"
)

func newLiveDemoCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "live-demo",
		Short: "Stream a websocket bar feed through the toxicity bus, sizer, and risk gate",
		RunE:  runLiveDemo,
	}

	cmd.Flags().String("url", "", "websocket URL to stream bars from (required)")
	cmd.Flags().String("strategy", "demo", "strategy identifier used for sizing and risk gating")
	cmd.MarkFlagRequired("url")

	return cmd
}

func runLiveDemo(cmd *cobra.Command, args []string) error {
	configPath, _ := cmd.Flags().GetString("config")
	url, _ := cmd.Flags().GetString("url")
	strategy, _ := cmd.Flags().GetString("strategy")

	cfg, err := wfconfig.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	bus, err := orderflow.New(cfg.Orderflow, hawkes.EmpiricalFitter{Beta: cfg.Orderflow.Hawkes.DecayRate})
	if err != nil {
		return fmt.Errorf("construct orderflow bus: %w", err)
	}
	sizer, err := sizing.New(cfg.Giller)
	if err != nil {
		return fmt.Errorf("construct sizer: %w", err)
	}

	clk := clock.NewSystem()
	tracker, err := daypnl.New(cfg.DailyLoss, clk, func(string) float64 { return 0 }, func(strategyID string) {
		log.Warn().Str("strategy", strategyID).Msg("flatten requested by daily loss gate")
	}, nil)
	if err != nil {
		return fmt.Errorf("construct daily loss tracker: %w", err)
	}
	manager := risk.New(tracker)

	reg := telemetry.NewRegistry()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	stream, err := feed.Dial(ctx, url)
	if err != nil {
		return fmt.Errorf("dial feed: %w", err)
	}
	defer stream.Close()

	progress := applog.NewProgressIndicator("live-demo", 0, applog.DefaultProgressConfig())

	prevClose := 0.0
	havePrev := false
	barCount := 0

	for {
		b, err := stream.Next(ctx)
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, context.Canceled) {
				progress.FinishWithMessage(fmt.Sprintf("stream ended after %d bars", barCount))
				return nil
			}
			progress.Fail(err.Error())
			return fmt.Errorf("stream: %w", err)
		}
		barCount++

		bus.HandleBar(b.TsNs, b.Open, b.High, b.Low, b.Close, b.Volume)
		reg.ObserveVPIN(strategy, bus.Toxicity(), bus.Toxicity() >= 0.7)
		reg.ObserveHawkes(strategy, bus.OFI(b.TsNs), 0)

		barReturn := 0.0
		if havePrev && prevClose != 0 {
			barReturn = (b.Close - prevClose) / prevClose
		}
		prevClose = b.Close
		havePrev = true

		size := sizer.Size(barReturn, 0.5, bus.Toxicity())
		reg.ObserveSize(strategy, size)

		side := "buy"
		if barReturn < 0 {
			side = "sell"
		}
		order := risk.Order{StrategyID: strategy, Side: side, Quantity: size}
		if err := manager.ValidateOrder(order); err != nil {
			log.Warn().Err(err).Msg("order blocked by risk gate")
		}

		tracker.HandleMarkUpdate(strategy, size*barReturn, b.TsNs)
		reg.ObserveDailyPnL(strategy, tracker.State(strategy).Total())

		progress.UpdateWithMessage(barCount, fmt.Sprintf("toxicity=%.3f size=%.4f", bus.Toxicity(), size))
		if !tracker.CanTrade(strategy) {
			log.Warn().Str("strategy", strategy).Msg("daily loss limit triggered; continuing in observe-only mode")
		}
	}
}
