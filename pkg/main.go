package main

import (
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	pkg "github.com/edvisory/portal-messaging/pkg/internal"
	"github.com/edvisory/portal-messaging/pkg/internal/cache"
	"github.com/edvisory/portal-messaging/pkg/internal/database"
	"github.com/edvisory/portal-messaging/pkg/internal/grpc"
	"github.com/edvisory/portal-messaging/pkg/internal/http"
	"github.com/fatih/color"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

func init() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stdout})
}

func main() {
	// Booting screen
	fmt.Println(color.YellowString(" ____            _        _   __  __"))
	fmt.Println(color.YellowString("|  _ \\ ___  _ __| |_ __ _| | |  \\/  |___  __ _"))
	fmt.Println(color.YellowString("| |_) / _ \\| '__| __/ _` | | | |\\/| / __|/ _` |"))
	fmt.Println(color.YellowString("|  __/ (_) | |  | || (_| | | | |  | \\__ \\ (_| |"))
	fmt.Println(color.YellowString("|_|   \\___/|_|   \\__\\__,_|_| |_|  |_|___/\\__, |"))
	fmt.Println(color.YellowString("                                         |___/"))
	fmt.Printf("%s v%s\n", color.New(color.FgHiYellow).Add(color.Bold).Sprintf("Portal.Messaging"), pkg.AppVersion)
	fmt.Printf("The messaging core of the study abroad portal\n")
	color.HiBlack("=====================================================\n")

	// Load .env, missing files are fine
	if err := godotenv.Load(".env.local"); err != nil {
		_ = godotenv.Load()
	}

	// Configure settings
	viper.AddConfigPath(".")
	viper.AddConfigPath("..")
	viper.SetConfigName("settings")
	viper.SetConfigType("toml")
	viper.SetEnvPrefix("messaging")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// Load settings
	if err := viper.ReadInConfig(); err != nil {
		log.Panic().Err(err).Msg("An error occurred when loading settings.")
	}

	// Connect to database
	if err := database.NewSource(); err != nil {
		log.Fatal().Err(err).Msg("An error occurred when connect to database.")
	} else if err := database.RunMigration(database.C); err != nil {
		log.Fatal().Err(err).Msg("An error occurred when running database auto migration.")
	}

	// Connect to redis for token revocation
	if err := cache.NewRedis(); err != nil {
		log.Fatal().Err(err).Msg("An error occurred when connecting to redis.")
	} else if cache.R == nil {
		log.Warn().Msg("Redis is not configured, token revocation checks are disabled.")
	}

	// Server
	server := http.NewServer()
	go server.Listen()

	grpcServer := grpc.NewGrpc()
	go func() {
		if err := grpcServer.Listen(); err != nil {
			log.Fatal().Err(err).Msg("An error occurred when starting grpc server...")
		}
	}()

	// Messages
	log.Info().Msgf("Messaging v%s is started...", pkg.AppVersion)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msgf("Messaging v%s is quitting...", pkg.AppVersion)

	grpcServer.MarkNotServing()
	if err := server.Shutdown(); err != nil {
		log.Error().Err(err).Msg("An error occurred when shutting down server...")
	}
	grpcServer.Stop()
	if cache.R != nil {
		_ = cache.R.Close()
	}
}
