package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/tendant/page-modules/pkg/pagemodules"
	"github.com/tendant/page-modules/pkg/pagemodules/api"
)

// NewTypesCommand creates the types command
func NewTypesCommand() *cobra.Command {
	var all bool
	var skip, limit int

	cmd := &cobra.Command{
		Use:   "types",
		Short: "List module types",
		Long:  `List the module type catalog. Only active types are listed unless --all is given.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var active *bool
			if !all {
				t := true
				active = &t
			}
			types, err := clientFromFlags(cmd).ListTypes(cmd.Context(), active, skip, limit)
			if err != nil {
				return fmt.Errorf("list types failed: %w", err)
			}

			out := cmd.OutOrStdout()
			for _, t := range types {
				status := ""
				if !t.IsActive {
					status = " (inactive)"
				}
				fmt.Fprintf(out, "%s  %-12s %s%s\n", t.ID, t.Name, t.DisplayName, status)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&all, "all", false, "Include inactive types")
	cmd.Flags().IntVar(&skip, "skip", 0, "Number of types to skip")
	cmd.Flags().IntVar(&limit, "limit", 0, "Maximum number of types to return")
	return cmd
}

// NewTreeCommand creates the tree command
func NewTreeCommand() *cobra.Command {
	var asJSON, reload bool

	cmd := &cobra.Command{
		Use:   "tree <content-id>",
		Short: "Show the module tree of a content entity",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			contentID, err := parseUUID("content id", args[0])
			if err != nil {
				return err
			}
			client := clientFromFlags(cmd)

			var tree *pagemodules.TreeSnapshot
			if reload {
				tree, err = client.ReloadTree(cmd.Context(), contentID)
			} else {
				tree, err = client.GetTree(cmd.Context(), contentID)
			}
			if err != nil {
				return fmt.Errorf("get tree failed: %w", err)
			}
			return writeTree(cmd.OutOrStdout(), tree, asJSON)
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the tree as JSON")
	cmd.Flags().BoolVar(&reload, "reload", false, "Reload the tree from storage first")
	return cmd
}

// NewInsertCommand creates the insert command
func NewInsertCommand() *cobra.Command {
	var parent string
	var position int
	var classes []string
	var attrs map[string]string
	var inactive bool

	cmd := &cobra.Command{
		Use:   "insert <content-id> <type-id>",
		Short: "Place a new module",
		Long:  `Place a new module of the given type. Without --position the module is appended to its sibling group.`,
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			contentID, err := parseUUID("content id", args[0])
			if err != nil {
				return err
			}
			if _, err := parseUUID("type id", args[1]); err != nil {
				return err
			}

			req := api.InsertModuleRequest{
				ModuleTypeID:     args[1],
				CSSClasses:       classes,
				CustomAttributes: parseValues(attrs),
			}
			if parent != "" {
				req.ParentID = &parent
			}
			if cmd.Flags().Changed("position") {
				req.Position = &position
			}
			if inactive {
				f := false
				req.IsActive = &f
			}

			resp, err := clientFromFlags(cmd).Insert(cmd.Context(), contentID, req)
			if err != nil {
				return fmt.Errorf("insert failed: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Inserted module %s at order %d\n", resp.Module.ID, resp.Module.Order)
			return nil
		},
	}

	cmd.Flags().StringVar(&parent, "parent", "", "Parent module id (default: root)")
	cmd.Flags().IntVar(&position, "position", 0, "Zero-based position among the siblings")
	cmd.Flags().StringSliceVar(&classes, "class", nil, "CSS class (repeatable)")
	cmd.Flags().StringToStringVar(&attrs, "attr", nil, "Custom attribute key=value; values are parsed as JSON when possible")
	cmd.Flags().BoolVar(&inactive, "inactive", false, "Create the module inactive")
	return cmd
}

// NewMoveCommand creates the move command
func NewMoveCommand() *cobra.Command {
	var parent string
	var position int

	cmd := &cobra.Command{
		Use:   "move <content-id> <module-id>",
		Short: "Move a module to a new parent and position",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			contentID, err := parseUUID("content id", args[0])
			if err != nil {
				return err
			}
			moduleID, err := parseUUID("module id", args[1])
			if err != nil {
				return err
			}

			req := api.MoveModuleRequest{Position: position}
			if parent != "" {
				req.ParentID = &parent
			}
			tree, err := clientFromFlags(cmd).Move(cmd.Context(), contentID, moduleID, req)
			if err != nil {
				return reportReorder(cmd, "move", err)
			}
			return writeTree(cmd.OutOrStdout(), tree, false)
		},
	}

	cmd.Flags().StringVar(&parent, "parent", "", "New parent module id (default: root)")
	cmd.Flags().IntVar(&position, "position", 0, "Zero-based position among the new siblings")
	return cmd
}

// NewRemoveCommand creates the remove command
func NewRemoveCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "remove <content-id> <module-id>",
		Short: "Remove a module and everything nested in it",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			contentID, err := parseUUID("content id", args[0])
			if err != nil {
				return err
			}
			moduleID, err := parseUUID("module id", args[1])
			if err != nil {
				return err
			}
			tree, err := clientFromFlags(cmd).Remove(cmd.Context(), contentID, moduleID)
			if err != nil {
				return reportReorder(cmd, "remove", err)
			}
			return writeTree(cmd.OutOrStdout(), tree, false)
		},
	}
}

// NewAttrsCommand creates the attrs command
func NewAttrsCommand() *cobra.Command {
	var classes []string
	var attrs map[string]string
	var active bool

	cmd := &cobra.Command{
		Use:   "attrs <content-id> <module-id>",
		Short: "Edit css classes, custom attributes or the active flag of a module",
		Long:  `Edit the attributes of a module. Only the flags given are changed; --attr replaces the whole attribute map.`,
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			contentID, err := parseUUID("content id", args[0])
			if err != nil {
				return err
			}
			moduleID, err := parseUUID("module id", args[1])
			if err != nil {
				return err
			}

			var req api.EditAttributesRequest
			if cmd.Flags().Changed("class") {
				req.CSSClasses = classes
				if req.CSSClasses == nil {
					req.CSSClasses = []string{}
				}
			}
			if cmd.Flags().Changed("attr") {
				req.CustomAttributes = parseValues(attrs)
			}
			if cmd.Flags().Changed("active") {
				req.IsActive = &active
			}

			tree, err := clientFromFlags(cmd).EditAttributes(cmd.Context(), contentID, moduleID, req)
			if err != nil {
				return fmt.Errorf("edit failed: %w", err)
			}
			return writeTree(cmd.OutOrStdout(), tree, false)
		},
	}

	cmd.Flags().StringSliceVar(&classes, "class", nil, "CSS class (repeatable); replaces the current list")
	cmd.Flags().StringToStringVar(&attrs, "attr", nil, "Custom attribute key=value; values are parsed as JSON when possible")
	cmd.Flags().BoolVar(&active, "active", true, "Active flag")
	return cmd
}

// NewDataCommand creates the data command with its get and set subcommands
func NewDataCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "data",
		Short: "Read and write module data",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "get <module-id>",
		Short: "Show the data of a module",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			moduleID, err := parseUUID("module id", args[0])
			if err != nil {
				return err
			}
			data, err := clientFromFlags(cmd).GetData(cmd.Context(), moduleID)
			if err != nil {
				return fmt.Errorf("get data failed: %w", err)
			}

			keys := make([]string, 0, len(data))
			for k := range data {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			out := cmd.OutOrStdout()
			for _, k := range keys {
				b, _ := json.Marshal(data[k])
				fmt.Fprintf(out, "%s=%s\n", k, b)
			}
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "set <module-id> <key> <value>",
		Short: "Write one data value; the value is parsed as JSON when possible",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			moduleID, err := parseUUID("module id", args[0])
			if err != nil {
				return err
			}
			stored, err := clientFromFlags(cmd).SetData(cmd.Context(), moduleID, args[1], parseValue(args[2]))
			if err != nil {
				return fmt.Errorf("set data failed: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Stored %s on module %s\n", stored.DataKey, stored.PageModuleID)
			return nil
		},
	})

	return cmd
}

// NewPublishCommand creates the publish command
func NewPublishCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "publish <content-id>",
		Short: "Publish the tree snapshot of a content entity",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			contentID, err := parseUUID("content id", args[0])
			if err != nil {
				return err
			}
			if err := clientFromFlags(cmd).Publish(cmd.Context(), contentID); err != nil {
				return fmt.Errorf("publish failed: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Published %s\n", contentID)
			return nil
		},
	}
}

// reportReorder prints the resynchronized tree of a failed reorder before
// returning the error.
func reportReorder(cmd *cobra.Command, op string, err error) error {
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Tree != nil {
		fmt.Fprintln(cmd.ErrOrStderr(), "Tree reloaded from storage:")
		_ = writeTree(cmd.ErrOrStderr(), apiErr.Tree, false)
	}
	return fmt.Errorf("%s failed: %w", op, err)
}

func parseUUID(what, raw string) (uuid.UUID, error) {
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid %s %q: %w", what, raw, err)
	}
	return id, nil
}

func parseValue(raw string) interface{} {
	var v interface{}
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		return raw
	}
	return v
}

func parseValues(raw map[string]string) map[string]interface{} {
	if raw == nil {
		return nil
	}
	out := make(map[string]interface{}, len(raw))
	for k, v := range raw {
		out[k] = parseValue(v)
	}
	return out
}

func writeTree(w io.Writer, tree *pagemodules.TreeSnapshot, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(tree)
	}

	fmt.Fprintf(w, "content %s\n", tree.ContentID)
	var walk func(nodes []*pagemodules.NodeSnapshot, depth int)
	walk = func(nodes []*pagemodules.NodeSnapshot, depth int) {
		for _, n := range nodes {
			name := n.ModuleTypeID.String()
			if n.ModuleType != nil {
				name = n.ModuleType.Name
			}
			line := fmt.Sprintf("%s%d. %s %s", strings.Repeat("  ", depth+1), n.Order, name, n.ID)
			if len(n.CSSClasses) > 0 {
				line += " [" + strings.Join(n.CSSClasses, " ") + "]"
			}
			if !n.IsActive {
				line += " (inactive)"
			}
			fmt.Fprintln(w, line)
			walk(n.Children, depth+1)
		}
	}
	walk(tree.Modules, 0)
	return nil
}
