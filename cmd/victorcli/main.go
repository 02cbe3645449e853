// victorcli runs one-shot operations against a running victord or victorkv
// server, mostly for inspection and scripting.
//
//	victorcli -u /path/socket.unix insert 42 1.0,0.0,0.0,0.0
//	victorcli -u /path/socket.unix search 5 1.0,0.0,0.0,0.0
//	victorcli -u /path/socket.unix delete 42
//	victorcli -u /path/socket.unix put user:1 hello
//	victorcli -u /path/socket.unix get user:1
//	victorcli -u /path/socket.unix del user:1
package main

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/victor-base/victordb/pkg/client"
)

func main() {
	socket := flag.String("u", "", "unix socket path (required)")
	flag.Parse()

	args := flag.Args()
	if *socket == "" || len(args) == 0 {
		usage()
	}

	var err error
	switch args[0] {
	case "insert":
		err = runInsert(*socket, args[1:])
	case "search":
		err = runSearch(*socket, args[1:])
	case "delete":
		err = runDelete(*socket, args[1:])
	case "put":
		err = runPut(*socket, args[1:])
	case "get":
		err = runGet(*socket, args[1:])
	case "del":
		err = runDel(*socket, args[1:])
	default:
		usage()
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, `usage: victorcli -u <socket> <command> [args]

commands:
  insert <id> <v1,v2,...>   insert a vector
  search <k> <v1,v2,...>    nearest-neighbor search
  delete <id>               delete a vector
  put <key> <value>         store a value
  get <key>                 fetch a value
  del <key>                 delete a key`)
	os.Exit(2)
}

func parseVector(raw string) ([]float32, error) {
	parts := strings.Split(raw, ",")
	vector := make([]float32, len(parts))
	for i, part := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(part), 32)
		if err != nil {
			return nil, fmt.Errorf("vector element %d: %w", i, err)
		}
		vector[i] = float32(v)
	}
	return vector, nil
}

func runInsert(socket string, args []string) error {
	if len(args) != 2 {
		usage()
	}
	id, err := strconv.ParseUint(args[0], 10, 64)
	if err != nil {
		return err
	}
	vector, err := parseVector(args[1])
	if err != nil {
		return err
	}
	c, err := client.DialIndex(socket)
	if err != nil {
		return err
	}
	defer c.Close()
	if err := c.Insert(id, vector); err != nil {
		return err
	}
	fmt.Println("ok")
	return nil
}

func runSearch(socket string, args []string) error {
	if len(args) != 2 {
		usage()
	}
	k, err := strconv.ParseUint(args[0], 10, 32)
	if err != nil {
		return err
	}
	vector, err := parseVector(args[1])
	if err != nil {
		return err
	}
	c, err := client.DialIndex(socket)
	if err != nil {
		return err
	}
	defer c.Close()
	matches, err := c.Search(vector, uint32(k))
	if err != nil {
		return err
	}
	for _, m := range matches {
		fmt.Printf("%d\t%g\n", m.Id, m.Distance)
	}
	return nil
}

func runDelete(socket string, args []string) error {
	if len(args) != 1 {
		usage()
	}
	id, err := strconv.ParseUint(args[0], 10, 64)
	if err != nil {
		return err
	}
	c, err := client.DialIndex(socket)
	if err != nil {
		return err
	}
	defer c.Close()
	if err := c.Delete(id); err != nil {
		return err
	}
	fmt.Println("ok")
	return nil
}

func runPut(socket string, args []string) error {
	if len(args) != 2 {
		usage()
	}
	c, err := client.DialTable(socket)
	if err != nil {
		return err
	}
	defer c.Close()
	if err := c.Put([]byte(args[0]), []byte(args[1])); err != nil {
		return err
	}
	fmt.Println("ok")
	return nil
}

func runGet(socket string, args []string) error {
	if len(args) != 1 {
		usage()
	}
	c, err := client.DialTable(socket)
	if err != nil {
		return err
	}
	defer c.Close()
	value, err := c.Get([]byte(args[0]))
	if err != nil {
		return err
	}
	os.Stdout.Write(value)
	fmt.Println()
	return nil
}

func runDel(socket string, args []string) error {
	if len(args) != 1 {
		usage()
	}
	c, err := client.DialTable(socket)
	if err != nil {
		return err
	}
	defer c.Close()
	if err := c.Del([]byte(args[0])); err != nil {
		return err
	}
	fmt.Println("ok")
	return nil
}
