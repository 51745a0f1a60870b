package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/ShunsukeHayashi/workflowd/internal/broadcast"
	"github.com/ShunsukeHayashi/workflowd/internal/config"
	"github.com/ShunsukeHayashi/workflowd/internal/engine"
	"github.com/ShunsukeHayashi/workflowd/internal/journal"
	"github.com/ShunsukeHayashi/workflowd/internal/llm"
	"github.com/ShunsukeHayashi/workflowd/internal/server"
	"github.com/ShunsukeHayashi/workflowd/internal/store"
	"github.com/ShunsukeHayashi/workflowd/internal/version"
)

// shutdownGrace bounds how long shutdown waits for the HTTP server and
// in-flight workflow executions.
const shutdownGrace = 30 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the orchestration server",
	Long: `Start the workflowd HTTP server together with the background
assignment and progress loops. The server runs until interrupted, then
drains in-flight workflow executions before exiting.`,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	loader := config.NewLoader(cfgFile)
	cfg, err := loader.Load()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	templates := llm.DefaultAgentTemplates()
	if cfg.Agents.CatalogPath != "" {
		templates, err = llm.LoadAgentTemplates(cfg.Agents.CatalogPath)
		if err != nil {
			return fmt.Errorf("load agent catalog: %w", err)
		}
	}

	client, err := llm.NewClient(llm.ClientConfig{
		Model:         cfg.Anthropic.Model,
		APIKey:        cfg.Anthropic.APIKey,
		UseAWSBedrock: cfg.Bedrock.Enabled,
		AWSRegion:     cfg.Bedrock.Region,
		AWSProfile:    cfg.Bedrock.Profile,
	})
	if err != nil {
		return err
	}

	// Each collaborator gets its own breaker so a failing generator does
	// not trip the executor.
	retry := llm.DefaultRetryConfig()
	genRunner := llm.NewResilientRunner("generator", client, retry)
	decRunner := llm.NewResilientRunner("decomposer", client, retry)
	execRunner := llm.NewResilientRunner("executor", client, retry)

	st := store.New()
	b := broadcast.New(cfg.Broadcast.BufferSize)
	defer b.Close()

	executor := llm.NewExecutor(execRunner, st)
	eng := engine.New(engine.Deps{
		Store:        st,
		Broadcaster:  b,
		Generator:    llm.NewGenerator(genRunner, templates),
		Decomposer:   llm.NewDecomposer(decRunner),
		AgentManager: llm.NewAssigner(),
		Executor:     executor,
	},
		engine.WithAssignInterval(cfg.Scheduler.AssignInterval),
		engine.WithProgressInterval(cfg.Scheduler.ProgressInterval),
		engine.WithDependencyPolicy(cfg.DependencyPolicy()),
	)
	executor.BindReporter(eng)

	var eventLog server.EventLog
	if cfg.Journal.Path != "" {
		jrn, err := journal.Open(cfg.Journal.Path)
		if err != nil {
			return fmt.Errorf("open journal: %w", err)
		}
		defer jrn.Close()
		go jrn.Consume(ctx, b)
		eventLog = jrn
	}

	srv := server.New(server.Config{
		Engine:      eng,
		Broadcaster: b,
		EventLog:    eventLog,
		RecentLimit: cfg.Journal.RecentLimit,
	})

	loader.Watch(func(next *config.Config) {
		srv.SetRecentLimit(next.Journal.RecentLimit)
	})

	httpSrv := &http.Server{
		Addr:    cfg.Server.Listen,
		Handler: srv.Handler(),
	}

	color.Green("workflowd %s listening on %s", version.Get(), cfg.Server.Listen)
	if eventLog == nil {
		color.Yellow("event journal disabled (journal.path is empty)")
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		return httpSrv.Shutdown(shutdownCtx)
	})

	g.Go(func() error {
		eng.RunAssignmentLoop(gctx)
		return nil
	})

	g.Go(func() error {
		eng.RunProgressLoop(gctx)
		return nil
	})

	err = g.Wait()

	// Detached executions outlive the request that started them; give
	// them a bounded window to finish before the process exits.
	if n := eng.RunningExecutions(); n > 0 {
		log.Printf("[serve] waiting for %d in-flight executions", n)
		drainCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		if waitErr := eng.WaitForExecutions(drainCtx); waitErr != nil {
			log.Printf("[serve] executions did not drain: %v", waitErr)
		}
	}

	return err
}
