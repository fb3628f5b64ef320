package commands

import (
	"context"
	"os"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/studysignal/studyroomd/pkg/gateway"
	"github.com/studysignal/studyroomd/pkg/relay"
	"github.com/studysignal/studyroomd/pkg/store"
	"github.com/studysignal/studyroomd/pkg/token"
	"github.com/studysignal/studyroomd/pkg/ws"
)

var log *logrus.Logger

// startCmd represents the start command
var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Starts the studyroomd server",
	Run:   runServer,
}

func init() {
	RootCmd.AddCommand(startCmd)

	startCmd.Flags().StringP("bind", "b", "127.0.0.1:8080", "Bind the server to host:port. Leave host empty to bind to all interfaces.")
	viper.BindPFlag("server.bind", startCmd.Flags().Lookup("bind"))

	viper.SetDefault("server.statsPassword", "")
	viper.SetDefault("server.allowedOrigins", []string{"http://localhost:3000"})
	viper.SetDefault("server.rateLimit", 20)
	viper.SetDefault("server.rateBurst", 40)
	viper.SetDefault("token.ttlHours", 24)
	viper.SetDefault("mongo.uri", "mongodb://127.0.0.1:27017")
	viper.SetDefault("mongo.database", "studyroom")
}

func runServer(cmd *cobra.Command, args []string) {
	log = logrus.New()
	log.Out = os.Stderr
	log.Formatter = new(logrus.TextFormatter)
	log.Level = logrus.DebugLevel

	secret := viper.GetString("token.secret")
	if secret == "" {
		log.Fatal("token.secret must be set (STUDYROOMD_TOKEN_SECRET)")
	}
	tokens := token.NewService(secret, viper.GetDuration("token.ttlHours")*time.Hour)

	ctx := context.Background()
	client, err := store.Connect(ctx, log, viper.GetString("mongo.uri"))
	if err != nil {
		log.Fatal(err)
	}
	defer client.Disconnect(ctx)

	rooms := store.NewMongo(client, viper.GetString("mongo.database"))
	if err := rooms.EnsureIndexes(ctx); err != nil {
		log.Fatal(err)
	}

	origins := viper.GetStringSlice("server.allowedOrigins")
	r := relay.New(log, tokens)
	gw := gateway.New(log, tokens, rooms, r, ws.NewHandler(log, r, origins), gateway.Config{
		AllowedOrigins: origins,
		RateLimit:      viper.GetFloat64("server.rateLimit"),
		RateBurst:      viper.GetInt("server.rateBurst"),
		StatsPassword:  viper.GetString("server.statsPassword"),
	})

	bind := viper.GetString("server.bind")
	log.WithField("bind", bind).Info("Starting studyroomd")
	log.Fatal(gw.Router().Start(bind))
}
