package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/skeeterman007/bbs-fw/bbsfw"
	"github.com/skeeterman007/bbs-fw/config"

	"github.com/BurntSushi/toml"
	"github.com/fatih/color"
	log "github.com/sirupsen/logrus"
)

var connTo = flag.String("c", "", "connection string, use tcp://[host]:[port] for TCP or [serialDevice] for direct serial connection")
var timeout = flag.Duration("t", 10*time.Second, "connect and request timeout")
var verbose = flag.Bool("v", false, "verbose logging")

func usage() {
	fmt.Fprintf(os.Stderr, "usage: bbsfwctl [options] command [args]\n\n")
	fmt.Fprintf(os.Stderr, "commands:\n")
	fmt.Fprintf(os.Stderr, "  ports                list serial ports\n")
	fmt.Fprintf(os.Stderr, "  version              show controller firmware version\n")
	fmt.Fprintf(os.Stderr, "  read [-o file]       read the configuration as a TOML profile\n")
	fmt.Fprintf(os.Stderr, "  write -i file        write a TOML profile to the controller\n")
	fmt.Fprintf(os.Stderr, "  eventlog on|off      switch the controller event log stream\n")
	fmt.Fprintf(os.Stderr, "  monitor              stream event log entries until interrupted\n")
	fmt.Fprintf(os.Stderr, "\noptions:\n")
	flag.PrintDefaults()
}

func main() {
	flag.Usage = usage
	flag.Parse()

	if *verbose {
		log.SetLevel(log.DebugLevel)
		log.SetFormatter(&log.TextFormatter{
			FullTimestamp: true,
		})
	}

	args := flag.Args()
	if len(args) == 0 {
		usage()
		os.Exit(2)
	}

	var err error
	switch args[0] {
	case "ports":
		err = cmdPorts()
	case "version":
		err = cmdVersion()
	case "read":
		err = cmdRead(args[1:])
	case "write":
		err = cmdWrite(args[1:])
	case "eventlog":
		err = cmdEventLog(args[1:])
	case "monitor":
		err = cmdMonitor()
	default:
		fmt.Fprintf(os.Stderr, "bbsfwctl: unknown command %q\n\n", args[0])
		usage()
		os.Exit(2)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "bbsfwctl: %v\n", err)
		os.Exit(1)
	}
}

func dial() (*bbsfw.Connection[*config.Config], error) {
	if *connTo == "" {
		return nil, fmt.Errorf("need connection string in -c option")
	}
	conn := bbsfw.NewConnection[*config.Config](config.Codec{})
	v, err := conn.Connect(*connTo, *timeout)
	if err != nil {
		return nil, err
	}
	log.Debugf("controller firmware %s, config layout v%d", v.Version, v.ConfigVersion)
	return conn, nil
}

func cmdPorts() error {
	ports, err := bbsfw.ListPorts()
	if err != nil {
		return err
	}
	if len(ports) == 0 {
		fmt.Println("no serial ports found")
		return nil
	}
	for _, p := range ports {
		if p.Description != "" {
			fmt.Printf("%s\t%s\n", p.Device, p.Description)
		} else {
			fmt.Println(p.Device)
		}
	}
	return nil
}

func cmdVersion() error {
	conn, err := dial()
	if err != nil {
		return err
	}
	defer conn.Close()

	v := conn.FirmwareVersion()
	fmt.Printf("firmware %s (config layout v%d)\n", v.Version, v.ConfigVersion)
	return nil
}

func cmdRead(args []string) error {
	fs := flag.NewFlagSet("read", flag.ExitOnError)
	out := fs.String("o", "", "write the profile to TOML `file` instead of stdout")
	fs.Parse(args)

	conn, err := dial()
	if err != nil {
		return err
	}
	defer conn.Close()

	cfg, err := conn.ReadConfiguration(*timeout)
	if err != nil {
		return err
	}
	if *out != "" {
		return config.SaveProfile(*out, cfg)
	}
	return toml.NewEncoder(os.Stdout).Encode(cfg)
}

func cmdWrite(args []string) error {
	fs := flag.NewFlagSet("write", flag.ExitOnError)
	in := fs.String("i", "", "read the profile from TOML `file`")
	fs.Parse(args)

	if *in == "" {
		return fmt.Errorf("write needs a profile in the -i option")
	}
	cfg, err := config.LoadProfile(*in)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	conn, err := dial()
	if err != nil {
		return err
	}
	defer conn.Close()

	if err := conn.WriteConfiguration(cfg, *timeout); err != nil {
		return err
	}
	fmt.Println("configuration written")
	return nil
}

func cmdEventLog(args []string) error {
	if len(args) != 1 || (args[0] != "on" && args[0] != "off") {
		return fmt.Errorf("eventlog needs one argument, on or off")
	}

	conn, err := dial()
	if err != nil {
		return err
	}
	defer conn.Close()

	if err := conn.SetEventLogging(args[0] == "on"); err != nil {
		return err
	}
	fmt.Println("event log", args[0])
	return nil
}

func cmdMonitor() error {
	conn, err := dial()
	if err != nil {
		return err
	}
	defer conn.Close()

	entries := make(chan bbsfw.EventLogEntry, 64)
	conn.OnEventLog(func(e bbsfw.EventLogEntry) {
		select {
		case entries <- e:
		default:
		}
	})
	lost := make(chan struct{}, 1)
	conn.OnDisconnected(func() {
		select {
		case lost <- struct{}{}:
		default:
		}
	})

	if err := conn.SetEventLogging(true); err != nil {
		return err
	}

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)

	for {
		select {
		case e := <-entries:
			printEvent(e)
		case <-lost:
			return fmt.Errorf("connection lost")
		case <-sig:
			return nil
		}
	}
}

func printEvent(e bbsfw.EventLogEntry) {
	ts := time.Now().Format("15:04:05.000")
	switch {
	case e.IsError():
		fmt.Printf("%s %s\n", ts, color.RedString(e.String()))
	case e.HasData:
		fmt.Printf("%s %s\n", ts, color.CyanString(e.String()))
	default:
		fmt.Printf("%s %s\n", ts, e.String())
	}
}
