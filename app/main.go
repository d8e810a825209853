// consulkv is an operational CLI over the client library: read, write and
// delete keys in Consul KV and dump subtrees as yaml or json.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/go-pkgz/lgr"
	flags "github.com/jessevdk/go-flags"
	"gopkg.in/yaml.v3"

	"github.com/umputun/consulkv"
)

var revision = "unknown"

type options struct {
	Addr    string        `short:"a" long:"addr" env:"CONSUL_HTTP_ADDR" description:"consul agent address"`
	Token   string        `short:"t" long:"token" env:"CONSUL_HTTP_TOKEN" description:"ACL token"`
	Prefix  string        `short:"p" long:"prefix" env:"CONSULKV_PREFIX" description:"prefix scoping all keys"`
	Timeout time.Duration `long:"timeout" env:"CONSULKV_TIMEOUT" default:"5s" description:"request timeout"`
	Dbg     bool          `long:"dbg" env:"DEBUG" description:"debug mode"`

	Get  getCommand  `command:"get" description:"print the value of a key"`
	Set  setCommand  `command:"set" description:"store a value under a key"`
	Del  delCommand  `command:"del" description:"delete a key or a whole subtree"`
	Keys keysCommand `command:"keys" description:"list keys under a prefix"`
	Tree treeCommand `command:"tree" description:"print a subtree as yaml or json"`
}

var opts options

// stdout is swapped in tests to capture command output
var stdout io.Writer = os.Stdout

func main() {
	p := flags.NewParser(&opts, flags.Default)
	p.CommandHandler = func(command flags.Commander, args []string) error {
		setupLog(opts.Dbg)
		lgr.Printf("[DEBUG] consulkv %s", revision)
		return command.Execute(args)
	}

	if _, err := p.Parse(); err != nil {
		var flagsErr *flags.Error
		if errors.As(err, &flagsErr) && flagsErr.Type == flags.ErrHelp {
			os.Exit(0)
		}
		os.Exit(1)
	}
}

// withClient builds a client from the global options, runs fn and releases
// the connection on every exit path.
func withClient(fn func(ctx context.Context, client *consulkv.Client) error) error {
	client, err := consulkv.New(opts.Addr,
		consulkv.WithToken(opts.Token),
		consulkv.WithPrefix(opts.Prefix),
		consulkv.WithTimeout(opts.Timeout),
	)
	if err != nil {
		return fmt.Errorf("failed to make client: %w", err)
	}
	defer client.Close()

	lgr.Printf("[DEBUG] agent %q, prefix %q", opts.Addr, client.Prefix())
	return fn(context.Background(), client)
}

type getCommand struct {
	Args struct {
		Key string `positional-arg-name:"key" required:"true" description:"key to read"`
	} `positional-args:"true" required:"true"`
}

// Execute prints the value of a single key.
func (cmd *getCommand) Execute(_ []string) error {
	return withClient(func(ctx context.Context, client *consulkv.Client) error {
		val, err := client.Get(ctx, cmd.Args.Key)
		if err != nil {
			return fmt.Errorf("failed to get %q: %w", cmd.Args.Key, err)
		}
		fmt.Fprintln(stdout, val)
		return nil
	})
}

type setCommand struct {
	CAS   *uint64 `long:"cas" description:"write only if the key's modify index still matches"`
	Flags uint64  `long:"flags" description:"opaque flags number stored with the key"`
	Args  struct {
		Key   string `positional-arg-name:"key" required:"true"`
		Value string `positional-arg-name:"value" required:"true"`
	} `positional-args:"true" required:"true"`
}

// Execute stores a value, optionally with check-and-set semantics.
func (cmd *setCommand) Execute(_ []string) error {
	return withClient(func(ctx context.Context, client *consulkv.Client) error {
		key, value := cmd.Args.Key, cmd.Args.Value
		if cmd.CAS != nil {
			ok, err := client.SetCAS(ctx, key, value, *cmd.CAS)
			if err != nil {
				return fmt.Errorf("failed to set %q: %w", key, err)
			}
			if !ok {
				return fmt.Errorf("cas write of %q rejected, modify index %d is stale", key, *cmd.CAS)
			}
			return nil
		}
		if cmd.Flags != 0 {
			return client.SetWithFlags(ctx, key, value, cmd.Flags)
		}
		return client.Set(ctx, key, value)
	})
}

type delCommand struct {
	Recurse bool `long:"recurse" description:"delete everything under the key"`
	Args    struct {
		Key string `positional-arg-name:"key" required:"true"`
	} `positional-args:"true" required:"true"`
}

// Execute deletes a key, or a whole subtree with --recurse.
func (cmd *delCommand) Execute(_ []string) error {
	return withClient(func(ctx context.Context, client *consulkv.Client) error {
		if cmd.Recurse {
			return client.DeleteTree(ctx, cmd.Args.Key)
		}
		return client.Delete(ctx, cmd.Args.Key)
	})
}

type keysCommand struct {
	Args struct {
		Prefix string `positional-arg-name:"prefix" description:"optional subprefix, defaults to everything"`
	} `positional-args:"true"`
}

// Execute lists key names one per line.
func (cmd *keysCommand) Execute(_ []string) error {
	return withClient(func(ctx context.Context, client *consulkv.Client) error {
		keys, err := client.Keys(ctx, cmd.Args.Prefix)
		if err != nil {
			return fmt.Errorf("failed to list keys under %q: %w", cmd.Args.Prefix, err)
		}
		for _, k := range keys {
			fmt.Fprintln(stdout, k)
		}
		return nil
	})
}

type treeCommand struct {
	Format string `long:"fmt" choice:"yaml" choice:"json" choice:"toml" default:"yaml" description:"output format"`
	Args   struct {
		Prefix string `positional-arg-name:"prefix" description:"optional subprefix, defaults to everything"`
	} `positional-args:"true"`
}

// Execute prints a subtree as a nested document.
func (cmd *treeCommand) Execute(_ []string) error {
	return withClient(func(ctx context.Context, client *consulkv.Client) error {
		tree, err := client.GetTree(ctx, cmd.Args.Prefix)
		if err != nil {
			return fmt.Errorf("failed to get tree under %q: %w", cmd.Args.Prefix, err)
		}
		out, err := renderTree(tree, cmd.Format)
		if err != nil {
			return err
		}
		_, _ = stdout.Write(out)
		return nil
	})
}

// renderTree marshals a tree to the requested format, yaml by default.
func renderTree(tree consulkv.Tree, format string) ([]byte, error) {
	switch format {
	case "json":
		out, err := json.MarshalIndent(tree, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("failed to render json: %w", err)
		}
		return append(out, '\n'), nil
	case "toml":
		buf := &bytes.Buffer{}
		if err := toml.NewEncoder(buf).Encode(map[string]any(tree)); err != nil {
			return nil, fmt.Errorf("failed to render toml: %w", err)
		}
		return buf.Bytes(), nil
	default:
		out, err := yaml.Marshal(tree)
		if err != nil {
			return nil, fmt.Errorf("failed to render yaml: %w", err)
		}
		return out, nil
	}
}

func setupLog(dbg bool) {
	if dbg {
		lgr.Setup(lgr.Debug, lgr.CallerFile, lgr.CallerFunc, lgr.Msec, lgr.LevelBraces)
		return
	}
	lgr.Setup(lgr.Msec, lgr.LevelBraces)
}
