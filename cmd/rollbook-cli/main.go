package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/heysubinoy/rollbook/internal/api"
	"github.com/heysubinoy/rollbook/pkg/roster"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	// Get server address from environment or use default
	addr := os.Getenv("ROLLBOOK_GRPC_ADDR")
	if addr == "" {
		addr = "127.0.0.1:9090"
	}
	if strings.HasPrefix(addr, ":") {
		addr = "localhost" + addr
	}

	conn, err := grpc.NewClient("passthrough:///"+addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to connect: %v\n", err)
		os.Exit(1)
	}
	defer conn.Close()

	client := api.NewClient(conn)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	args := os.Args[2:]
	switch os.Args[1] {
	case "add":
		if len(args) != 3 {
			fmt.Println("Usage: rollbook-cli add <name> <roll-number> <grade>")
			os.Exit(1)
		}
		handleAdd(ctx, client, args[0], args[1], args[2])

	case "remove":
		if len(args) != 1 {
			fmt.Println("Usage: rollbook-cli remove <roll-number>")
			os.Exit(1)
		}
		handleRemove(ctx, client, args[0])

	case "search":
		if len(args) != 1 {
			fmt.Println("Usage: rollbook-cli search <roll-number>")
			os.Exit(1)
		}
		handleSearch(ctx, client, args[0])

	case "list":
		handleList(ctx, client)

	case "save":
		if len(args) != 1 {
			fmt.Println("Usage: rollbook-cli save <file>")
			os.Exit(1)
		}
		handleSave(ctx, client, args[0])

	case "load":
		if len(args) != 1 {
			fmt.Println("Usage: rollbook-cli load <file>")
			os.Exit(1)
		}
		handleLoad(ctx, client, args[0])

	default:
		fmt.Printf("Unknown command: %s\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

// fail prints a user-facing message for err and exits.
func fail(err error) {
	var ve *roster.ValidationError
	switch {
	case errors.As(err, &ve):
		fmt.Println(ve.Reason)
	case errors.Is(err, roster.ErrNotFound):
		fmt.Println("Student not found.")
	case roster.IsIO(err), roster.IsDecode(err):
		fmt.Printf("Error: %v\n", err)
	default:
		fmt.Fprintf(os.Stderr, "Request failed: %v\n", err)
	}
	os.Exit(1)
}

func handleAdd(ctx context.Context, client *api.Client, name, roll, grade string) {
	if _, err := client.AddStudent(ctx, name, roll, grade); err != nil {
		fail(err)
	}
	fmt.Println("Student added successfully.")
}

func handleRemove(ctx context.Context, client *api.Client, roll string) {
	if err := client.RemoveStudent(ctx, roll); err != nil {
		fail(err)
	}
	fmt.Println("Student removed successfully.")
}

func handleSearch(ctx context.Context, client *api.Client, roll string) {
	rec, err := client.SearchStudent(ctx, roll)
	if err != nil {
		fail(err)
	}
	fmt.Printf("Name:  %s\nGrade: %s\n", rec.Name(), rec.Grade())
}

func handleList(ctx context.Context, client *api.Client) {
	records, err := client.ListStudents(ctx)
	if err != nil {
		fail(err)
	}
	if len(records) == 0 {
		fmt.Println("No students to display.")
		return
	}
	for _, rec := range records {
		fmt.Println(rec)
	}
}

func handleSave(ctx context.Context, client *api.Client, path string) {
	if err := client.SaveToDestination(ctx, path); err != nil {
		fail(err)
	}
	fmt.Println("Data saved successfully.")
}

func handleLoad(ctx context.Context, client *api.Client, path string) {
	if err := client.LoadFromSource(ctx, path); err != nil {
		fail(err)
	}
	fmt.Println("Data loaded successfully.")
}

func printUsage() {
	fmt.Println("Usage:")
	fmt.Println("  rollbook-cli add <name> <roll-number> <grade>")
	fmt.Println("  rollbook-cli remove <roll-number>")
	fmt.Println("  rollbook-cli search <roll-number>")
	fmt.Println("  rollbook-cli list")
	fmt.Println("  rollbook-cli save <file>")
	fmt.Println("  rollbook-cli load <file>")
	fmt.Println("")
	fmt.Println("Environment variables:")
	fmt.Println("  ROLLBOOK_GRPC_ADDR - server gRPC address (default: 127.0.0.1:9090)")
}
