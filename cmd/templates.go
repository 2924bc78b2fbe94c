package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/conneroisu/folio/internal/catalog"
	"github.com/conneroisu/folio/internal/variables"
)

var (
	templatesFormat string

	showBodyOnly bool

	newOutput     string
	newVarsOutput string

	saveName        string
	saveCategory    string
	saveDescription string
	saveVarsFile    string
)

var templatesCmd = &cobra.Command{
	Use:     "templates",
	Aliases: []string{"t", "tpl"},
	Short:   "Manage document templates",
	Long: `List, inspect and manage document templates. Built-in templates ship with
folio and cannot be changed; saved templates get a "user-" id prefix and
live in the store directory.`,
}

var templatesListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List built-in and saved templates",
	Args:    cobra.NoArgs,
	RunE:    runTemplatesList,
}

var templatesShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Print a template with its frontmatter",
	Args:  cobra.ExactArgs(1),
	RunE:  runTemplatesShow,
}

var templatesSearchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Fuzzy search templates by name, category and description",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runTemplatesSearch,
}

var templatesNewCmd = &cobra.Command{
	Use:   "new <id>",
	Short: "Start a document from a template",
	Long: `Write a template's body as a new document and its default variables as a
YAML file ready for --vars.

Examples:
  folio templates new report -o q3.md --vars-out q3.yml
  folio render q3.md --vars q3.yml`,
	Args: cobra.ExactArgs(1),
	RunE: runTemplatesNew,
}

var templatesSaveCmd = &cobra.Command{
	Use:   "save <document.md>",
	Short: "Save a document as a user template",
	Long: `Save a document as a user template. A document that starts with YAML
frontmatter (id, name, category, description, variables) is stored as is;
flags override its fields. Giving --name derives a fresh id from it.

Examples:
  folio templates save weekly.md --name "Weekly Update" --vars weekly.yml`,
	Args: cobra.ExactArgs(1),
	RunE: runTemplatesSave,
}

var templatesDeleteCmd = &cobra.Command{
	Use:     "delete <id>",
	Aliases: []string{"rm"},
	Short:   "Delete a saved template",
	Args:    cobra.ExactArgs(1),
	RunE:    runTemplatesDelete,
}

func init() {
	rootCmd.AddCommand(templatesCmd)
	templatesCmd.AddCommand(templatesListCmd, templatesShowCmd, templatesSearchCmd,
		templatesNewCmd, templatesSaveCmd, templatesDeleteCmd)

	for _, c := range []*cobra.Command{templatesListCmd, templatesSearchCmd} {
		c.Flags().StringVarP(&templatesFormat, "format", "f", "table", "Output format (table, json, yaml)")
	}
	templatesShowCmd.Flags().BoolVar(&showBodyOnly, "body", false, "print only the body")
	templatesNewCmd.Flags().StringVarP(&newOutput, "output", "o", "", "document file to write (default stdout)")
	templatesNewCmd.Flags().StringVar(&newVarsOutput, "vars-out", "", "variables file to write")
	templatesSaveCmd.Flags().StringVar(&saveName, "name", "", "template name")
	templatesSaveCmd.Flags().StringVar(&saveCategory, "category", "", "template category")
	templatesSaveCmd.Flags().StringVar(&saveDescription, "description", "", "template description")
	templatesSaveCmd.Flags().StringVar(&saveVarsFile, "vars", "", "YAML file with the template's default variables")
}

func openCatalog() (*catalog.Catalog, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	store, err := openStore(cfg)
	if err != nil {
		return nil, err
	}
	return catalog.New(store)
}

// templateListing is the listed form of a template.
type templateListing struct {
	ID          string   `json:"id" yaml:"id"`
	Name        string   `json:"name" yaml:"name"`
	Category    string   `json:"category,omitempty" yaml:"category,omitempty"`
	Description string   `json:"description,omitempty" yaml:"description,omitempty"`
	BuiltIn     bool     `json:"built_in" yaml:"built_in"`
	Variables   []string `json:"variables,omitempty" yaml:"variables,omitempty"`
}

func runTemplatesList(cmd *cobra.Command, args []string) error {
	c, err := openCatalog()
	if err != nil {
		return err
	}
	templates, err := c.List()
	if err != nil {
		return err
	}
	return outputTemplates(cmd.OutOrStdout(), templates, templatesFormat)
}

func runTemplatesSearch(cmd *cobra.Command, args []string) error {
	c, err := openCatalog()
	if err != nil {
		return err
	}
	templates, err := c.Search(strings.Join(args, " "))
	if err != nil {
		return err
	}
	if len(templates) == 0 && templatesFormat == "table" {
		fmt.Fprintln(cmd.OutOrStdout(), "No templates found.")
		return nil
	}
	return outputTemplates(cmd.OutOrStdout(), templates, templatesFormat)
}

func outputTemplates(w io.Writer, templates []*catalog.Template, format string) error {
	listings := make([]templateListing, len(templates))
	for i, t := range templates {
		listings[i] = templateListing{
			ID:          t.ID,
			Name:        t.Name,
			Category:    t.Category,
			Description: t.Description,
			BuiltIn:     t.BuiltIn(),
			Variables:   variables.Describe(t.Variables),
		}
	}

	switch format {
	case "table", "":
		tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "ID\tNAME\tCATEGORY\tSOURCE")
		for _, l := range listings {
			source := "user"
			if l.BuiltIn {
				source = "built-in"
			}
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", l.ID, l.Name, l.Category, source)
		}
		return tw.Flush()
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(listings)
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		defer enc.Close()
		return enc.Encode(listings)
	default:
		return fmt.Errorf("unsupported format: %s (supported: table, json, yaml)", format)
	}
}

func runTemplatesShow(cmd *cobra.Command, args []string) error {
	c, err := openCatalog()
	if err != nil {
		return err
	}
	t, err := c.Get(args[0])
	if err != nil {
		return err
	}
	if showBodyOnly {
		_, err = io.WriteString(cmd.OutOrStdout(), t.Body)
		return err
	}
	data, err := catalog.Marshal(t)
	if err != nil {
		return err
	}
	_, err = cmd.OutOrStdout().Write(data)
	return err
}

func runTemplatesNew(cmd *cobra.Command, args []string) error {
	c, err := openCatalog()
	if err != nil {
		return err
	}
	body, vars, err := c.Load(args[0])
	if err != nil {
		return err
	}

	if err := writeOutput(cmd, newOutput, body); err != nil {
		return err
	}
	if newVarsOutput != "" {
		if err := variables.SaveFile(newVarsOutput, vars.All()); err != nil {
			return err
		}
	}
	if newOutput != "" {
		fmt.Fprintf(cmd.ErrOrStderr(), "created %s from %s\n", newOutput, args[0])
	}
	return nil
}

func runTemplatesSave(cmd *cobra.Command, args []string) error {
	data, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("failed to read document: %w", err)
	}

	t := &catalog.Template{Body: string(data)}
	if strings.HasPrefix(strings.TrimLeft(string(data), "\n"), "---") {
		if t, err = catalog.Parse(data); err != nil {
			return fmt.Errorf("failed to parse %s: %w", args[0], err)
		}
	}

	if saveName != "" {
		t.Name = saveName
		t.ID = ""
	}
	if saveCategory != "" {
		t.Category = saveCategory
	}
	if saveDescription != "" {
		t.Description = saveDescription
	}
	if saveVarsFile != "" {
		vars, err := variables.LoadFile(saveVarsFile)
		if err != nil {
			return err
		}
		t.Variables = vars
	}
	if t.Name == "" && t.ID == "" {
		return fmt.Errorf("a template needs a name: pass --name")
	}

	c, err := openCatalog()
	if err != nil {
		return err
	}
	saved, err := c.Save(t)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "saved template %s\n", saved.ID)
	return nil
}

func runTemplatesDelete(cmd *cobra.Command, args []string) error {
	c, err := openCatalog()
	if err != nil {
		return err
	}
	if err := c.Delete(args[0]); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "deleted template %s\n", args[0])
	return nil
}
