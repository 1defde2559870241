package main

import (
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"

	"github.com/admiralorbiter/okqueue/pkg/engine"
	"github.com/admiralorbiter/okqueue/pkg/logger"
)

func main() {
	viper.SetConfigName("okqueue")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AutomaticEnv()

	viper.SetDefault("SEED", 42)
	viper.SetDefault("POPULATION", 1000)
	viper.SetDefault("TICKS", 500)
	viper.SetDefault("ARRIVAL_RATE", 10.0)
	viper.SetDefault("CONFIG_FILE", "")
	viper.SetDefault("LOG_LEVEL", "info")
	viper.SetDefault("ENV", "development")

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			logrus.WithError(err).Fatal("Failed to read config file")
		}
	}

	log := logger.InitLogger(viper.GetString("LOG_LEVEL"), viper.GetString("ENV") == "development")

	seed := viper.GetUint64("SEED")
	population := viper.GetInt("POPULATION")
	ticks := viper.GetUint64("TICKS")

	var eng *engine.Engine
	if configFile := viper.GetString("CONFIG_FILE"); configFile != "" {
		data, err := os.ReadFile(configFile)
		if err != nil {
			log.WithError(err).Fatal("Failed to read matchmaking config")
		}
		eng, err = engine.NewWithConfig(seed, string(data))
		if err != nil {
			log.WithError(err).Fatal("Invalid matchmaking config")
		}
	} else {
		eng = engine.New(seed)
	}
	eng.SetLogger(log)
	eng.SetArrivalRate(viper.GetFloat64("ARRIVAL_RATE"))

	log.WithFields(logrus.Fields{
		"seed":       seed,
		"population": population,
		"ticks":      ticks,
	}).Info("Starting simulation run")

	eng.GeneratePopulation(population)
	eng.Run(ticks)

	stats := eng.Stats()
	counts := eng.PlayerCounts()
	log.WithFields(logrus.Fields{
		"total_matches":      stats.TotalMatches,
		"avg_search_time":    stats.AvgSearchTime,
		"search_time_p90":    stats.SearchTimeP90,
		"avg_delta_ping":     stats.AvgDeltaPing,
		"blowout_rate":       stats.BlowoutRate,
		"churn_rate":         stats.ChurnRate,
		"players_offline":    counts.Offline,
		"players_in_lobby":   counts.InLobby,
		"players_searching":  counts.Searching,
		"players_in_match":   counts.InMatch,
	}).Info("Simulation run complete")
}
