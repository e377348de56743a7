package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"membitnode/pkg/auth"
)

var exportOutput string

// authCmd represents the auth command
var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Manage stored account credentials",
	Long: `Manage stored account credentials securely.

Credentials are stored using:
  - System keychain (when available)
  - Encrypted file with PBKDF2 key derivation
  - Environment variables (fallback)

The node runner reads accounts from a plain text file. Use 'auth export'
to render every stored account into that file.

Never share your credentials or config files!`,
}

// addCmd represents the auth add command
var addCmd = &cobra.Command{
	Use:   "add [label]",
	Short: "Store account credentials securely",
	Long: `Store account credentials securely in the system keychain or encrypted file.

You will be prompted for:
  - A label for the account (if not provided)
  - Access token (the auth_token cookie)
  - CSRF token (the ct0 cookie)
  - Cookie header (the full Cookie string)

To get these values:
1. Log into x.com in your browser
2. Open Developer Tools (F12)
3. Go to Application/Storage > Cookies
4. Copy the auth_token and ct0 values, and the full cookie header
   from any GraphQL request on the Network tab`,
	Example: `  # Interactive add
  membitnode auth add

  # Add with a label
  membitnode auth add main-account`,
	Args: cobra.MaximumNArgs(1),
	Run:  runAuthAdd,
}

// authListCmd represents the auth list command
var authListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all stored accounts",
	Long:  `List all stored accounts with sanitized credential information.`,
	Run:   runAuthList,
}

// removeCmd represents the auth remove command
var removeCmd = &cobra.Command{
	Use:   "remove [label]",
	Short: "Remove stored credentials",
	Long: `Remove stored account credentials.

If no label is provided, you will be shown a list of stored accounts
to choose from.`,
	Example: `  # Interactive remove
  membitnode auth remove

  # Remove a specific account
  membitnode auth remove main-account`,
	Args: cobra.MaximumNArgs(1),
	Run:  runAuthRemove,
}

// exportCmd represents the auth export command
var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write stored accounts to the accounts file",
	Long: `Render every stored account into the accounts file the node runner reads:
blank-line-separated blocks of accessToken, csrf and cookie lines.

The target file is overwritten.`,
	Example: `  # Write to the default account.txt
  membitnode auth export

  # Write somewhere else
  membitnode auth export --output ./accounts.txt`,
	Args: cobra.NoArgs,
	Run:  runAuthExport,
}

func init() {
	rootCmd.AddCommand(authCmd)
	authCmd.AddCommand(addCmd)
	authCmd.AddCommand(authListCmd)
	authCmd.AddCommand(removeCmd)
	authCmd.AddCommand(exportCmd)

	exportCmd.Flags().StringVarP(&exportOutput, "output", "o", "account.txt", "accounts file to write")
}

func runAuthAdd(cmd *cobra.Command, args []string) {
	manager, err := auth.NewManager()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Failed to initialize credential manager:", err)
		os.Exit(1)
	}

	reader := bufio.NewReader(os.Stdin)

	var label string
	if len(args) > 0 {
		label = args[0]
	}
	if label == "" {
		fmt.Print("Account label: ")
		input, err := reader.ReadString('\n')
		if err != nil {
			fmt.Fprintln(os.Stderr, "Failed to read label:", err)
			os.Exit(1)
		}
		label = strings.TrimSpace(input)
	}
	if label == "" {
		fmt.Fprintln(os.Stderr, "A label is required")
		os.Exit(1)
	}

	// Check if account already exists
	if existing, _ := manager.Retrieve(label); existing != nil {
		fmt.Printf("Account '%s' already exists. Update credentials? (y/N): ", label)
		input, _ := reader.ReadString('\n')
		if !strings.HasPrefix(strings.ToLower(strings.TrimSpace(input)), "y") {
			return
		}
	}

	fmt.Println("\nEnter your cookie values (they will be hidden as you type):")
	fmt.Println()

	fmt.Print("access token (auth_token cookie): ")
	accessToken, err := readPassword()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Failed to read access token:", err)
		os.Exit(1)
	}

	fmt.Print("csrf token (ct0 cookie): ")
	csrf, err := readPassword()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Failed to read CSRF token:", err)
		os.Exit(1)
	}

	fmt.Print("cookie header: ")
	cookie, err := readPassword()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Failed to read cookie:", err)
		os.Exit(1)
	}

	creds := &auth.Credentials{
		Label:        label,
		AccessToken:  accessToken,
		CSRF:         csrf,
		Cookie:       cookie,
		LastModified: time.Now(),
	}

	if err := manager.Store(creds); err != nil {
		fmt.Fprintln(os.Stderr, "Failed to store credentials:", err)
		os.Exit(1)
	}

	fmt.Printf("\nCredentials stored for '%s'.\n", label)
	fmt.Println("\nNext steps:")
	fmt.Println("  membitnode auth export    # write account.txt")
	fmt.Println("  membitnode run            # start the fleet")
}

func runAuthList(cmd *cobra.Command, args []string) {
	manager, err := auth.NewManager()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Failed to initialize credential manager:", err)
		os.Exit(1)
	}

	all, err := manager.List()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Failed to list accounts:", err)
		os.Exit(1)
	}

	if len(all) == 0 {
		fmt.Println("No stored accounts. Use 'membitnode auth add' to add one.")
		return
	}

	fmt.Println("Stored Accounts")
	fmt.Println()
	for i, creds := range all {
		sanitized := auth.Sanitize(creds)
		fmt.Printf("%d. Label: %s\n", i+1, sanitized.Label)
		fmt.Printf("   Access Token: %s\n", sanitized.AccessToken)
		fmt.Printf("   CSRF Token: %s\n", sanitized.CSRF)
		fmt.Printf("   Cookie: %s\n", sanitized.Cookie)
		fmt.Printf("   Last Modified: %s\n", sanitized.LastModified.Format("2006-01-02 15:04:05"))
		fmt.Println()
	}
}

func runAuthRemove(cmd *cobra.Command, args []string) {
	manager, err := auth.NewManager()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Failed to initialize credential manager:", err)
		os.Exit(1)
	}

	if len(args) > 0 {
		label := args[0]
		if err := manager.Delete(label); err != nil {
			fmt.Fprintln(os.Stderr, "Failed to remove account:", err)
			os.Exit(1)
		}
		fmt.Println("Account removed:", label)
		return
	}

	all, err := manager.List()
	if err != nil || len(all) == 0 {
		fmt.Fprintln(os.Stderr, "No stored accounts found")
		return
	}

	reader := bufio.NewReader(os.Stdin)

	if len(all) == 1 {
		creds := all[0]
		fmt.Printf("Remove account '%s'? (y/N): ", creds.Label)
		input, _ := reader.ReadString('\n')
		if !strings.HasPrefix(strings.ToLower(strings.TrimSpace(input)), "y") {
			return
		}
		if err := manager.Delete(creds.Label); err != nil {
			fmt.Fprintln(os.Stderr, "Failed to remove account:", err)
			os.Exit(1)
		}
		fmt.Println("Account removed:", creds.Label)
		return
	}

	fmt.Println("Select account to remove:")
	for i, creds := range all {
		fmt.Printf("  %d. %s\n", i+1, creds.Label)
	}
	fmt.Printf("  0. Cancel\n\n")
	fmt.Print("Choice: ")
	input, _ := reader.ReadString('\n')

	var choice int
	fmt.Sscanf(strings.TrimSpace(input), "%d", &choice)
	if choice < 1 || choice > len(all) {
		return
	}

	label := all[choice-1].Label
	if err := manager.Delete(label); err != nil {
		fmt.Fprintln(os.Stderr, "Failed to remove account:", err)
		os.Exit(1)
	}
	fmt.Println("Account removed:", label)
}

func runAuthExport(cmd *cobra.Command, args []string) {
	manager, err := auth.NewManager()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Failed to initialize credential manager:", err)
		os.Exit(1)
	}

	blocks, err := manager.ExportBlocks()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Failed to export accounts:", err)
		os.Exit(1)
	}

	if err := os.WriteFile(exportOutput, []byte(blocks), 0600); err != nil {
		fmt.Fprintln(os.Stderr, "Failed to write accounts file:", err)
		os.Exit(1)
	}

	fmt.Println("Accounts written to", exportOutput)
	fmt.Println("\nStart the fleet with:")
	fmt.Printf("  membitnode run --accounts %s\n", exportOutput)
}

// readPassword reads a secret from stdin without echoing
func readPassword() (string, error) {
	if term.IsTerminal(int(syscall.Stdin)) {
		secret, err := term.ReadPassword(int(syscall.Stdin))
		fmt.Println() // New line after hidden input
		if err == nil {
			return strings.TrimSpace(string(secret)), nil
		}
	}

	// Fallback to regular input
	reader := bufio.NewReader(os.Stdin)
	input, err := reader.ReadString('\n')
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(input), nil
}
