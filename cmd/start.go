package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/teleportdao/teleswap-engine/config"
	"github.com/teleportdao/teleswap-engine/engine"
	"github.com/teleportdao/teleswap-engine/ethereum"
)

func startCmd(a *AppState) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "start",
		Short: "Start the settlement engine",
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			a.InitAppState()
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg := a.Config

			if cfg.Connector.RPC == "" {
				return fmt.Errorf("a connector must be configured to start the engine")
			}

			signerKey, err := config.SignerKey(a.EnvFile)
			if err != nil {
				return err
			}
			operatorToken, err := config.OperatorToken(a.EnvFile)
			if err != nil {
				return err
			}

			metricsPort, err := cmd.Flags().GetInt16(flagMetricsPort)
			if err != nil {
				return err
			}
			if cfg.MetricsPort != 0 {
				metricsPort = cfg.MetricsPort
			}
			metrics := engine.InitPromMetrics(metricsPort)

			conn, err := ethereum.NewConnector(cfg.Connector, signerKey, a.Logger)
			if err != nil {
				return err
			}
			if err := conn.InitializeClients(ctx, cfg.Connector); err != nil {
				return err
			}
			defer conn.CloseClients()

			collab := engine.Collaborators{
				Ledger:    conn,
				Transport: conn,
				Verifier:  conn,
			}
			if conn.HasDistributor() {
				collab.Distributor = conn
			}

			eng, err := a.BuildEngine(collab, conn, metrics)
			if err != nil {
				return err
			}

			// job processing queue
			processingQueue := make(chan *Job, 10000)

			// spin up the processor worker pool
			for i := 0; i < int(cfg.ProcessorWorkerCount); i++ {
				go StartProcessor(ctx, a, eng, processingQueue)
			}

			go startAPI(a, eng, processingQueue, operatorToken)

			a.Logger.Info("engine started",
				"domain", cfg.Intermediary.Domain,
				"workers", cfg.ProcessorWorkerCount,
				"metrics_port", metricsPort,
			)

			<-ctx.Done()
			a.Logger.Info("shutting down")
			return nil
		},
	}
	return cmd
}
