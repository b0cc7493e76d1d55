// Copyright 2023-2024 daviszhen
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// cmd/worker hosts one node of the fragment-execution cluster: the
// exchange transport's gRPC listener, the exchange registry it feeds,
// and the memory-tracker root fragments hang off of. It replaces the
// teacher's cmd/main, which instead stood up a psql-wire SQL listener
// in front of its own single-node planner/executor — both the SQL
// front end and the planner that would submit a FragmentDescriptor to
// this node are out of scope here (see SPEC_FULL.md §5).
package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/BurntSushi/toml"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"google.golang.org/grpc"

	"github.com/flowshard/worker/pkg/exchange"
	"github.com/flowshard/worker/pkg/util"
)

// node bundles the long-lived, process-wide state a running worker
// holds: the exchange registry fed by the gRPC listener, and the root
// of the memory-tracker hierarchy (§5) a fragment.Executor's own
// tracker would be created as a child of, once something in this
// process starts constructing FragmentDescriptors to hand to
// pkg/fragment (out of scope: see the package doc comment above).
type node struct {
	cfg      *util.Config
	mem      *util.MemTracker
	registry *exchange.Registry
	grpc     *grpc.Server
}

func newNode(cfg *util.Config) *node {
	return &node{
		cfg:      cfg,
		mem:      util.NewRootTracker("worker", cfg.Memory.QueryLimitBytes),
		registry: exchange.NewRegistry(),
	}
}

func (n *node) serve(addr string) error {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", addr, err)
	}
	n.grpc = grpc.NewServer()
	exchange.RegisterTransmitChunkServer(n.grpc, n.registry)

	util.Info("worker listening", zap.String("addr", addr))
	return n.grpc.Serve(lis)
}

func (n *node) stop() {
	if n.grpc != nil {
		n.grpc.GracefulStop()
	}
}

var (
	cfgFile string
	addr    string
	devLog  bool
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		util.Error("worker exited with error", zap.Error(err))
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "worker",
		Short: "fragment-execution worker node",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context())
		},
	}
	root.PersistentFlags().StringVar(&cfgFile, "config", "", "path to a worker.toml config file")
	root.PersistentFlags().StringVar(&addr, "addr", "0.0.0.0:7070", "address the exchange transport listens on")
	root.PersistentFlags().BoolVar(&devLog, "dev", false, "use a human-readable development logger instead of the production JSON logger")

	bindFlagsToViper(root)
	return root
}

// bindFlagsToViper gives every flag an env-var override
// (WORKER_ADDR, WORKER_DEV, ...), matching the teacher's two-tier
// config story: a TOML file for static tuning, flags/env for the
// per-process overrides that change between deployments.
func bindFlagsToViper(root *cobra.Command) {
	viper.SetEnvPrefix("worker")
	viper.AutomaticEnv()
	_ = viper.BindPFlag("addr", root.PersistentFlags().Lookup("addr"))
	_ = viper.BindPFlag("config", root.PersistentFlags().Lookup("config"))
	_ = viper.BindPFlag("dev", root.PersistentFlags().Lookup("dev"))
}

func runServe(ctx context.Context) error {
	setupLogger()

	cfg := util.DefaultConfig()
	if fpath := viper.GetString("config"); fpath != "" {
		if !util.FileIsValid(fpath) {
			return fmt.Errorf("config file does not exist: %s", fpath)
		}
		if _, err := toml.DecodeFile(fpath, cfg); err != nil {
			return fmt.Errorf("decode config file %s: %w", fpath, err)
		}
	}

	n := newNode(cfg)

	errCh := make(chan error, 1)
	go func() {
		errCh <- n.serve(viper.GetString("addr"))
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-sigCh:
		util.Info("shutting down", zap.String("signal", sig.String()))
		n.stop()
		util.Sync()
		return nil
	}
}

func setupLogger() {
	var l *zap.Logger
	var err error
	if devLog || viper.GetBool("dev") {
		l, err = zap.NewDevelopment()
	} else {
		l, err = zap.NewProduction()
	}
	if err != nil {
		return
	}
	util.SetLogger(l)
}
