// Command dtnadm is the router daemon's companion admin CLI (§1
// expansion, §6): every subcommand opens one apisrv.Client connection,
// issues exactly the calls that connection's session needs, and exits —
// it never touches daemon state directly, the same loopback-only
// discipline cmd/dtnd's own API adapter enforces on every other caller.
// Grounded on cmd/cli/cli/app.go's urfave/cli-based command table shape.
/*
 * Copyright (c) 2018-2026, NVIDIA CORPORATION. All rights reserved.
 */
package main

import (
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/NVIDIA/aistore/apisrv"
	"github.com/urfave/cli"
)

const (
	appName = "dtnadm"
	ua      = "dtnadm/1"
)

var (
	serverFlag = cli.StringFlag{Name: "server, s", Value: "127.0.0.1:7779", Usage: "dtnd API adapter address"}
	tokenFlag  = cli.StringFlag{Name: "token, t", Usage: "bearer token, when the target daemon runs with require_auth"}
)

func main() {
	app := cli.NewApp()
	app.Name = appName
	app.Usage = "control and inspect a running dtnd node"
	app.Version = ua
	app.Flags = []cli.Flag{serverFlag, tokenFlag}
	app.Commands = []cli.Command{
		localEIDCommand,
		registerCommand,
		unregisterCommand,
		findRegCommand,
		sendCommand,
		recvCommand,
		paramCommand,
	}
	app.CommandNotFound = func(c *cli.Context, name string) {
		fmt.Fprintf(os.Stderr, "%s: unknown command %q\n", appName, name)
	}
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// withSession dials, opens a session, runs fn, and always closes both —
// the shape every subcommand below shares, since the wire protocol scopes
// register/bind/send/recv to a session (§4.9).
func withSession(c *cli.Context, fn func(*apisrv.Client) error) error {
	client, err := apisrv.Dial(c.GlobalString("server"), c.GlobalString("token"))
	if err != nil {
		return err
	}
	defer client.Close()
	if _, err := client.Open(); err != nil {
		return err
	}
	defer client.CloseSession()
	return fn(client)
}

var localEIDCommand = cli.Command{
	Name:      "local-eid",
	Usage:     "print the node's local EID, or a tag-specific singleton/service EID",
	ArgsUsage: "[tag]",
	Action: func(c *cli.Context) error {
		return withSession(c, func(client *apisrv.Client) error {
			e, err := client.LocalEID(c.Args().First())
			if err != nil {
				return err
			}
			fmt.Println(e)
			return nil
		})
	},
}

var registerCommand = cli.Command{
	Name:      "register",
	Usage:     "register an EID pattern and print the assigned registration ID",
	ArgsUsage: "pattern",
	Flags: []cli.Flag{
		cli.StringFlag{Name: "action", Value: "defer", Usage: "unbound-delivery action: drop, defer, exec"},
	},
	Action: func(c *cli.Context) error {
		if c.NArg() != 1 {
			return cli.NewExitError("usage: dtnadm register <pattern>", 1)
		}
		action, err := parseAction(c.String("action"))
		if err != nil {
			return err
		}
		return withSession(c, func(client *apisrv.Client) error {
			regID, err := client.Register(c.Args().First(), action)
			if err != nil {
				return err
			}
			fmt.Println(regID)
			return nil
		})
	},
}

var unregisterCommand = cli.Command{
	Name:      "unregister",
	Usage:     "remove a registration by ID",
	ArgsUsage: "reg-id",
	Action: func(c *cli.Context) error {
		regID, err := parseRegID(c.Args().First())
		if err != nil {
			return err
		}
		return withSession(c, func(client *apisrv.Client) error {
			return client.Unregister(regID)
		})
	},
}

var findRegCommand = cli.Command{
	Name:      "find-registration",
	Usage:     "find the registration ID bound to an EID",
	ArgsUsage: "eid",
	Action: func(c *cli.Context) error {
		if c.NArg() != 1 {
			return cli.NewExitError("usage: dtnadm find-registration <eid>", 1)
		}
		return withSession(c, func(client *apisrv.Client) error {
			regID, err := client.FindRegistration(c.Args().First())
			if err != nil {
				return err
			}
			fmt.Println(regID)
			return nil
		})
	},
}

var sendCommand = cli.Command{
	Name:      "send",
	Usage:     "send a bundle; payload is read from a file, or stdin when -payload is omitted",
	ArgsUsage: "dest-eid",
	Flags: []cli.Flag{
		cli.StringFlag{Name: "payload", Usage: "path to a file holding the payload; defaults to stdin"},
		cli.Uint64Flag{Name: "lifetime", Value: 3600, Usage: "bundle lifetime in seconds"},
		cli.UintFlag{Name: "priority", Value: 1, Usage: "0=bulk, 1=normal, 2=expedited"},
	},
	Action: func(c *cli.Context) error {
		if c.NArg() != 1 {
			return cli.NewExitError("usage: dtnadm send <dest-eid>", 1)
		}
		var payload []byte
		var err error
		if path := c.String("payload"); path != "" {
			payload, err = os.ReadFile(path)
		} else {
			payload, err = io.ReadAll(os.Stdin)
		}
		if err != nil {
			return err
		}
		return withSession(c, func(client *apisrv.Client) error {
			localID, err := client.Send(c.Args().First(), payload, 0, c.Uint64("lifetime"), uint8(c.Uint("priority")))
			if err != nil {
				return err
			}
			fmt.Println(localID)
			return nil
		})
	},
}

var recvCommand = cli.Command{
	Name:  "recv",
	Usage: "register on an EID, bind, and wait up to -timeout for one bundle delivery",
	Flags: []cli.Flag{
		cli.StringFlag{Name: "pattern", Usage: "EID pattern to register on", Required: true},
		cli.DurationFlag{Name: "timeout", Value: 0, Usage: "0 returns at once when nothing is pending"},
		cli.StringFlag{Name: "out", Usage: "write the payload here instead of stdout"},
	},
	Action: func(c *cli.Context) error {
		return withSession(c, func(client *apisrv.Client) error {
			regID, err := client.Register(c.String("pattern"), uint8(0 /* DROP; recv doesn't need a failure action */))
			if err != nil {
				return err
			}
			defer client.Unregister(regID)
			if err := client.Bind(regID); err != nil {
				return err
			}
			resp, err := client.Recv(c.Duration("timeout"))
			if err != nil {
				return err
			}
			fmt.Fprintf(os.Stderr, "from %s to %s, %d bytes\n", resp.Source, resp.Dest, len(resp.Payload))
			if out := c.String("out"); out != "" {
				return os.WriteFile(out, resp.Payload, 0o644)
			}
			_, err = os.Stdout.Write(resp.Payload)
			return err
		})
	},
}

var paramCommand = cli.Command{
	Name:  "param",
	Usage: "get, set, or dump runtime tunables (§6 param set/get/dump)",
	Subcommands: []cli.Command{
		{
			Name:      "get",
			ArgsUsage: "key",
			Action: func(c *cli.Context) error {
				if c.NArg() != 1 {
					return cli.NewExitError("usage: dtnadm param get <key>", 1)
				}
				return withSession(c, func(client *apisrv.Client) error {
					v, err := client.ParamGet(c.Args().First())
					if err != nil {
						return err
					}
					fmt.Println(v)
					return nil
				})
			},
		},
		{
			Name:      "set",
			ArgsUsage: "key value",
			Action: func(c *cli.Context) error {
				if c.NArg() != 2 {
					return cli.NewExitError("usage: dtnadm param set <key> <value>", 1)
				}
				return withSession(c, func(client *apisrv.Client) error {
					return client.ParamSet(c.Args().Get(0), c.Args().Get(1))
				})
			},
		},
		{
			Name: "dump",
			Action: func(c *cli.Context) error {
				return withSession(c, func(client *apisrv.Client) error {
					values, err := client.ParamDump()
					if err != nil {
						return err
					}
					for k, v := range values {
						fmt.Printf("%-28s %s\n", k, v)
					}
					return nil
				})
			},
		},
	},
}

func parseAction(s string) (uint8, error) {
	switch s {
	case "drop":
		return 0, nil
	case "defer":
		return 1, nil
	case "exec":
		return 2, nil
	default:
		return 0, fmt.Errorf("unknown action %q (want drop, defer, or exec)", s)
	}
}

func parseRegID(s string) (uint32, error) {
	n, err := strconv.ParseUint(s, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid registration id %q: %w", s, err)
	}
	return uint32(n), nil
}

