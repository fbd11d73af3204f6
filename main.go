package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/disgoorg/disgo/bot"
	"github.com/joho/godotenv"

	_ "github.com/leeineian/ritmo/home"
	"github.com/leeineian/ritmo/proc"
	"github.com/leeineian/ritmo/sys"
)

const pidFile = ".bot.pid"

func main() {
	silent := flag.Bool("silent", false, "Disable all log output")
	forceScan := flag.Bool("scan", false, "Force command re-registration")
	flag.Parse()

	_ = godotenv.Load()
	sys.InitLogger(*silent, false)

	// 1. Check for and kill old process
	if pidData, err := os.ReadFile(pidFile); err == nil {
		if oldPid, err := strconv.Atoi(string(pidData)); err == nil && oldPid != os.Getpid() {
			if process, err := os.FindProcess(oldPid); err == nil {
				if err := process.Signal(syscall.Signal(0)); err == nil {
					sys.LogInfo(sys.MsgBotKillingOld, oldPid)
					if err := process.Signal(syscall.SIGTERM); err == nil {
						for i := 0; i < 50; i++ {
							if err := process.Signal(syscall.Signal(0)); err != nil {
								break
							}
							time.Sleep(100 * time.Millisecond)
						}
						sys.LogInfo(sys.MsgBotOldTerminated)
					} else {
						sys.LogWarn(sys.MsgBotKillFail, err)
					}
				}
			}
		}
	}

	// 2. Write PID file
	if err := os.WriteFile(pidFile, []byte(strconv.Itoa(os.Getpid())), 0644); err != nil {
		sys.LogWarn(sys.MsgBotPIDWriteFail, err)
	}
	defer os.Remove(pidFile)

	// 3. Run until a shutdown signal arrives
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM, os.Interrupt)
	defer stop()
	sys.SetAppContext(ctx)

	if err := run(ctx, *forceScan); err != nil {
		sys.LogFatal("%v", err)
	}
}

func run(ctx context.Context, forceScan bool) error {
	cfg, err := sys.LoadConfig()
	if err != nil {
		return fmt.Errorf(sys.MsgConfigFailedToLoad, err)
	}

	if err := sys.InitDatabase(ctx, cfg.DatabasePath); err != nil {
		return err
	}
	defer sys.CloseDatabase()

	// Artifacts left by a previous run are stale; start with an empty cache.
	if err := proc.GetVoiceManager().ClearCache(); err != nil {
		sys.LogWarn(sys.MsgBotCacheCleanFail, err)
	}

	sys.LogInfo(sys.MsgBotStarting, sys.GetProjectName())

	var client *bot.Client
	for attempt := 1; attempt <= 5; attempt++ {
		client, err = sys.CreateClient(ctx, cfg)
		if err == nil {
			break
		}
		sys.LogWarn(sys.MsgBotClientRetry, attempt, err)
		select {
		case <-time.After(time.Duration(attempt) * time.Second):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if err != nil {
		return fmt.Errorf(sys.MsgBotClientCreateFail, 5, err)
	}
	defer client.Close(context.Background())

	// Command registration runs in the background; the gateway does not
	// depend on it.
	go func() {
		if err := sys.RegisterCommands(client, cfg.GuildID, forceScan); err != nil {
			sys.LogError(sys.MsgBotRegisterFail, err)
		}
	}()

	if err := client.OpenGateway(ctx); err != nil {
		return fmt.Errorf(sys.MsgBotGatewayFail, err)
	}

	<-ctx.Done()
	sys.LogInfo(sys.MsgBotShutdown, sys.GetProjectName())

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	sys.ShutdownDaemons(shutdownCtx)
	return nil
}
