package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"io/ioutil"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/golang/glog"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ktao/dmhub/auth"
	"github.com/ktao/dmhub/bridge"
	"github.com/ktao/dmhub/config"
	"github.com/ktao/dmhub/directory"
	"github.com/ktao/dmhub/httpapi"
	"github.com/ktao/dmhub/store"
	"github.com/ktao/dmhub/ws"
)

const eventPayloadMaxBytes = 4096

var (
	flagAddr    = flag.String("addr", "127.0.0.1:8000", "server address, ip:port")
	flagPidFile = flag.String("pid-file", "dmhub.pid", "pid file")

	flagMemStore = flag.Bool("mem-store", false, "use the in-memory message store and a fixed demo directory, for local development only")

	flagEnableBridge = flag.Bool("enable-event-bridge", false, "publish persisted messages to kafka (brokers from KAFKA_BROKERS)")

	flagPprofDir       = flag.String("pprof-dir", "pprof", "dir to save pprof data files")
	flagDisableMetrics = flag.Bool("disable-metrics", false, "disable prometheus metrics")
)

func main() {
	flag.Parse()

	// NOTE: os.Exit() does not call defers.
	os.Exit(run())
}

func run() int {
	defer glog.Flush()

	if v := validateFlags(); v > 0 {
		return v
	}

	cfg, err := config.Load()
	if err != nil {
		return errorf("config: %v", err)
	}

	pid := os.Getpid()

	if err := savePid(*flagPidFile, pid); err != nil {
		return errorf("pid file: %v", err)
	}
	defer func() {
		_ = os.Remove(*flagPidFile)
	}()

	pprofDir := filepath.Join(*flagPprofDir, strconv.Itoa(pid))
	if err := os.MkdirAll(pprofDir, 0750); err != nil {
		return errorf("--pprof-dir: error create dir `%s`: %v", pprofDir, err)
	}
	defer func() {
		_ = os.RemoveAll(pprofDir)
	}()

	glog.Info("dmhub server is starting")

	var (
		messageStore store.MessageStore
		dir          directory.Directory
		db           *sql.DB
	)
	if *flagMemStore {
		messageStore = store.NewMemoryStore()
		dir = directory.NewStaticDirectory(
			&directory.User{ID: 1, Name: "alice"},
			&directory.User{ID: 2, Name: "bob"},
		)
	} else {
		db, err = sql.Open("mysql", cfg.MysqlDSN)
		if err != nil {
			return errorf("sql.Open error, dsn: %s, err: %v", cfg.MysqlDSN, err)
		}
		db.SetConnMaxLifetime(time.Minute * 3)
		db.SetMaxOpenConns(100)
		db.SetMaxIdleConns(1)

		messageStore = store.NewMysqlStore(db)
		dir = directory.NewMysqlDirectory(db)
	}

	var publisher *bridge.Publisher
	if *flagEnableBridge {
		if len(cfg.KafkaBrokers) == 0 {
			return errorf("--enable-event-bridge: KAFKA_BROKERS is required")
		}
		publisher = bridge.NewPublisher(cfg.KafkaBrokers, cfg.KafkaTopic, eventPayloadMaxBytes)
		defer func() {
			_ = publisher.Close()
		}()
	}

	authClient := auth.NewJWTClient([]byte(cfg.JWTSecret), dir)
	registry := ws.NewRegistry()
	chatApi := ws.NewChatApi(messageStore, dir, registry, publisher)
	hub := ws.NewHub(authClient, chatApi, registry)

	router := httpapi.NewServer(authClient, chatApi).Router()
	router.Handle("/ws", hub)
	if !*flagDisableMetrics {
		router.Handle("/metrics", promhttp.HandlerFor(
			prometheus.DefaultGatherer,
			promhttp.HandlerOpts{},
		))
	}

	stopNotifyChan := make(chan struct{})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go hub.Run(ctx, stopNotifyChan)

	httpSrv := &http.Server{
		Addr:    *flagAddr,
		Handler: router,
	}
	go func() {
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			glog.Errorf("http server error: %v", err)
		}
	}()

	glog.Infof("dmhub server is listening on %s", *flagAddr)
	glog.Infof("`kill -USR1 %d` to dump goroutines; `kill -USR2 %d` to start/stop profiler; `CTRL+c` or `kill %d` to graceful stop", pid, pid, pid)

	var stopping bool

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGUSR1, syscall.SIGUSR2, syscall.SIGTERM, syscall.SIGINT)

	var prof *Profiler

	for sig := range sigCh {
		switch sig {
		case syscall.SIGUSR1:
			dumpGoroutines(pprofDir)
		case syscall.SIGUSR2:
			if prof == nil {
				prof = StartProfiler(pprofDir)
			} else {
				prof.Stop()
				prof = nil
			}
		case syscall.SIGTERM, syscall.SIGINT:
			if stopping {
				glog.Infof("dmhub server is already in stop")
				continue
			}
			stopping = true
			glog.Infof("received signal `%s`, stopping", sig.String())
			go func() {
				if prof != nil {
					prof.Stop()
				}
				shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer shutdownCancel()
				_ = httpSrv.Shutdown(shutdownCtx)
				cancel()
				<-stopNotifyChan
				close(stopNotifyChan)
				if db != nil {
					_ = db.Close()
				}
				signal.Stop(sigCh)
				close(sigCh)
			}()
		}
	}

	glog.Info("dmhub server exited")
	return 0
}

func validateFlags() int {
	if *flagAddr == "" {
		return errorf("--addr is required")
	}
	if err := validateAddr(*flagAddr); err != nil {
		return errorf("--addr: %v", err)
	}
	if *flagPidFile == "" {
		return errorf("--pid-file is required")
	}
	if *flagPprofDir == "" {
		return errorf("--pprof-dir is required")
	}
	return 0
}

func validateAddr(s string) error {
	ips, _, err := net.SplitHostPort(s)
	if err != nil {
		return fmt.Errorf("error split host port from `%s`: %v", s, err)
	}
	if ip := net.ParseIP(ips); ip == nil {
		return fmt.Errorf("error parse IP from host `%s`", ips)
	}
	return nil
}

func errorf(fmt string, args ...interface{}) int {
	glog.Errorf(fmt, args...)
	return 1
}

func savePid(name string, pid int) error {
	if _, err := os.Stat(name); err == nil {
		// Ok, see, if we have a stale lockfile here
		content, err := ioutil.ReadFile(name)
		if err != nil {
			return err
		}
		if len(content) > 0 {
			oldPid, err := strconv.Atoi(string(content))
			if err != nil {
				return err
			}

			proc, err := os.FindProcess(oldPid)
			if err != nil {
				return err
			}
			defer proc.Release()

			if err := proc.Signal(syscall.Signal(0)); err == nil {
				return fmt.Errorf("pid file: exists with pid: %d, the process is running", oldPid)
			} else {
				glog.Infof("pid file exists with pid: %d, but is not running", oldPid)
			}
		}
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("pid file: stat error: %v", err)
	}

	if err := ioutil.WriteFile(name, []byte(strconv.Itoa(pid)), 0600); err != nil {
		return fmt.Errorf("pid file: write error: %v", err)
	}
	glog.Infof("pid file: write pid done")
	return nil
}
