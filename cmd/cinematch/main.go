// Copyright 2026 cinematch Project Authors
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

package main

import (
	"context"
	"fmt"
	_ "net/http/pprof"
	"os"
	"os/signal"
	"syscall"

	"github.com/emicklei/go-restful/v3"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/cinematch-io/cinematch/base/log"
	"github.com/cinematch-io/cinematch/cmd/version"
	"github.com/cinematch-io/cinematch/config"
	"github.com/cinematch-io/cinematch/logics"
	"github.com/cinematch-io/cinematch/server"
	"github.com/cinematch-io/cinematch/storage/data"
	"github.com/cinematch-io/cinematch/storage/stats"
)

var rootCommand = &cobra.Command{
	Use:   "cinematch",
	Short: "The film catalog and recommender server.",
	Run: func(cmd *cobra.Command, args []string) {
		// show version
		showVersion, _ := cmd.PersistentFlags().GetBool("version")
		if showVersion {
			fmt.Println(version.BuildInfo())
			return
		}
		// setup logger
		debug, _ := cmd.PersistentFlags().GetBool("debug")
		log.SetLogger(cmd.PersistentFlags(), debug)

		// load config
		configPath, _ := cmd.PersistentFlags().GetString("config")
		conf, err := config.LoadConfig(configPath)
		if err != nil {
			log.Logger().Fatal("failed to load config", zap.Error(err))
		}

		// connect data store
		dataClient, err := data.Open(conf.Database.DataStore, conf.Database.TablePrefix)
		if err != nil {
			log.Logger().Fatal("failed to connect data store",
				zap.String("database", log.RedactDBURL(conf.Database.DataStore)), zap.Error(err))
		}
		if err = dataClient.Init(); err != nil {
			log.Logger().Fatal("failed to init data store", zap.Error(err))
		}
		// connect stats store
		statsClient, err := stats.Open(conf.Database.StatsStore, conf.Database.TablePrefix)
		if err != nil {
			log.Logger().Fatal("failed to connect stats store",
				zap.String("database", log.RedactDBURL(conf.Database.StatsStore)), zap.Error(err))
		}
		if err = statsClient.Init(); err != nil {
			log.Logger().Fatal("failed to init stats store", zap.Error(err))
		}

		// start recommender
		recommender := logics.NewRecommender(dataClient, statsClient, conf.Recommend.FlushInterval)
		if err = recommender.Start(context.Background()); err != nil {
			log.Logger().Fatal("failed to start recommender", zap.Error(err))
		}

		// start http server
		restServer := &server.RestServer{
			DataClient:  dataClient,
			Recommender: recommender,
			Config:      conf,
			HttpHost:    conf.Server.HttpHost,
			HttpPort:    conf.Server.HttpPort,
			WebService:  new(restful.WebService),
		}
		go restServer.StartHttpServer()

		// stop on SIGINT or SIGTERM
		done := make(chan os.Signal, 1)
		signal.Notify(done, syscall.SIGINT, syscall.SIGTERM)
		<-done
		log.Logger().Info("shutting down")
		if err = recommender.Stop(context.Background()); err != nil {
			log.Logger().Error("failed to stop recommender", zap.Error(err))
		}
		if err = dataClient.Close(); err != nil {
			log.Logger().Error("failed to close data store", zap.Error(err))
		}
		if err = statsClient.Close(); err != nil {
			log.Logger().Error("failed to close stats store", zap.Error(err))
		}
		log.CloseLogger()
	},
}

func init() {
	rootCommand.PersistentFlags().BoolP("version", "v", false, "cinematch version")
	rootCommand.PersistentFlags().StringP("config", "c", "", "configuration file path")
	rootCommand.PersistentFlags().Bool("debug", false, "use debug log mode")
	log.AddFlags(rootCommand.PersistentFlags())
}

func main() {
	if err := rootCommand.Execute(); err != nil {
		log.Logger().Fatal("failed to execute", zap.Error(err))
	}
}
