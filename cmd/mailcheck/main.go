// Command mailcheck is a diagnostic CLI that dials one mail protocol
// server, authenticates if credentials are supplied, and reports the
// outcome. It exercises mailcore's root Store/Transport constructors the
// way an operator would when chasing down a dead mail account.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/infodancer/mailcore"
	"github.com/infodancer/mailcore/internal/config"
	"github.com/infodancer/mailcore/internal/logging"
	"github.com/infodancer/mailcore/internal/metrics"
)

func main() {
	var (
		protocol   = flag.String("protocol", "", "pop3, imap, smtp, or nntp (required)")
		configPath = flag.String("config", "", "path to a mail.<protocol>.<key> TOML file")
		host       = flag.String("host", "", "server host (overrides config)")
		port       = flag.Int("port", 0, "server port (overrides config and protocol default)")
		username   = flag.String("user", "", "username (overrides config)")
		password   = flag.String("pass", os.Getenv("MAILCHECK_PASSWORD"), "password (overrides config; prefer MAILCHECK_PASSWORD)")
		ssl        = flag.Bool("ssl", false, "connect with implicit TLS")
		starttls   = flag.Bool("starttls", false, "upgrade with STARTTLS/STLS after connecting")
		timeout    = flag.Duration("timeout", 10*time.Second, "dial and I/O timeout")
		logLevel   = flag.String("log-level", "info", "debug, info, warn, or error")
	)
	flag.Parse()

	logger := logging.NewLogger(*logLevel)
	ctx := logging.WithContext(context.Background(), logger)

	if *protocol == "" {
		fmt.Fprintln(os.Stderr, "mailcheck: -protocol is required")
		os.Exit(2)
	}

	overrides := map[string]string{}
	if *host != "" {
		overrides["host"] = *host
	}
	if *port != 0 {
		overrides["port"] = fmt.Sprint(*port)
	}

	cfg, err := loadProtocolConfig(*configPath, *protocol, overrides)
	if err != nil {
		logger.Error("loading config", "error", err)
		os.Exit(1)
	}

	user := *username
	if user == "" {
		user = cfg.String("username", "")
	}
	pass := *password
	if pass == "" {
		pass = cfg.String("password", "")
	}

	collector := metrics.Collector(&metrics.NoopCollector{})

	var checkErr error
	switch *protocol {
	case "pop3":
		checkErr = checkPOP3(ctx, cfg, user, pass, *ssl, *starttls, *timeout, collector)
	case "imap":
		checkErr = checkIMAP(ctx, cfg, user, pass, *ssl, *starttls, *timeout, collector)
	case "smtp":
		checkErr = checkSMTP(ctx, cfg, *ssl, *starttls, *timeout, collector)
	case "nntp":
		checkErr = checkNNTP(ctx, cfg, user, pass, *ssl, *timeout, collector)
	default:
		fmt.Fprintf(os.Stderr, "mailcheck: unknown protocol %q\n", *protocol)
		os.Exit(2)
	}

	if checkErr != nil {
		logger.Error("check failed", "protocol", *protocol, "error", checkErr)
		os.Exit(1)
	}
	fmt.Printf("mailcheck: %s OK\n", *protocol)
}


func loadProtocolConfig(path, protocol string, overrides map[string]string) (config.ProtocolConfig, error) {
	base := config.NewProtocolConfig(protocol, nil)
	if path != "" {
		loaded, err := config.Load(path)
		if err != nil {
			return config.ProtocolConfig{}, err
		}
		if c, ok := loaded[protocol]; ok {
			base = c
		}
	}
	if len(overrides) == 0 {
		return base, nil
	}
	return mergeProtocolConfig(base, config.NewProtocolConfig(protocol, overrides)), nil
}

// mergeProtocolConfig lets CLI flag overrides win over file-sourced values
// for the handful of keys mailcheck itself cares about (host, port);
// every other key mailcheck reads is carried over from the file-sourced
// ProtocolConfig.
func mergeProtocolConfig(base, overrides config.ProtocolConfig) config.ProtocolConfig {
	values := map[string]string{
		"host": base.String("host", ""),
		"port": fmt.Sprint(base.Port()),
	}
	const absent = "\x00"
	for _, key := range []string{"username", "password", "localhost", "apop.enable", "auth.enable", "disabletop", "rsetbeforequit", "forgettopheaders", "sasl.enable"} {
		if v := base.String(key, absent); v != absent {
			values[key] = v
		}
	}
	if h := overrides.String("host", ""); h != "" {
		values["host"] = h
	}
	if p := overrides.Int("port", 0); p != 0 {
		values["port"] = fmt.Sprint(p)
	}
	return config.NewProtocolConfig(base.Protocol(), values)
}

func checkPOP3(ctx context.Context, cfg config.ProtocolConfig, user, pass string, ssl, starttls bool, timeout time.Duration, m metrics.Collector) error {
	store := mailcore.NewPOP3Store(mailcore.POP3Options{
		Host:             cfg.Host(),
		Port:             cfg.Port(),
		DialTimeout:      timeout,
		SSLEnable:        ssl,
		StartTLSEnable:   starttls,
		Username:         user,
		Password:         pass,
		APOPEnable:       cfg.Bool("apop.enable", false),
		AuthEnable:       cfg.Bool("auth.enable", true),
		Disabletop:       cfg.Bool("disabletop", false),
		Rsetbeforequit:   cfg.Bool("rsetbeforequit", false),
		ForgetTopHeaders: cfg.Bool("forgettopheaders", false),
		Metrics:          m,
	})
	defer store.Close(ctx)
	return store.Connect(ctx)
}

func checkIMAP(ctx context.Context, cfg config.ProtocolConfig, user, pass string, ssl, starttls bool, timeout time.Duration, m metrics.Collector) error {
	store := mailcore.NewIMAPStore(mailcore.IMAPOptions{
		Host:           cfg.Host(),
		Port:           cfg.Port(),
		DialTimeout:    timeout,
		SSLEnable:      ssl,
		StartTLSEnable: starttls,
		Username:       user,
		Password:       pass,
		SASLEnable:     cfg.Bool("sasl.enable", true),
		Metrics:        m,
	})
	defer store.Close(ctx)
	return store.Connect(ctx)
}

func checkSMTP(ctx context.Context, cfg config.ProtocolConfig, ssl, starttls bool, timeout time.Duration, m metrics.Collector) error {
	tr, err := mailcore.ConnectSMTP(ctx, mailcore.SMTPOptions{
		Host:           cfg.Host(),
		Port:           cfg.Port(),
		LocalHost:      cfg.String("localhost", "localhost"),
		DialTimeout:    timeout,
		SSLEnable:      ssl,
		StartTLSEnable: starttls,
		Metrics:        m,
	})
	if err != nil {
		return err
	}
	return tr.Close()
}

func checkNNTP(ctx context.Context, cfg config.ProtocolConfig, user, pass string, ssl bool, timeout time.Duration, m metrics.Collector) error {
	tr, err := mailcore.ConnectNNTP(ctx, mailcore.NNTPOptions{
		Host:        cfg.Host(),
		Port:        cfg.Port(),
		DialTimeout: timeout,
		SSLEnable:   ssl,
		Username:    user,
		Password:    pass,
		Metrics:     m,
	})
	if err != nil {
		return err
	}
	return tr.Close()
}
