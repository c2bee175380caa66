package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"

	"github.com/spf13/cobra"
)

func init() {
	memoirsCmd := &cobra.Command{Use: "memoirs", Short: "Memoir operations"}

	var title, content, status string
	createCmd := &cobra.Command{
		Use:   "create",
		Short: "Create a memoir",
		RunE: func(cmd *cobra.Command, args []string) error {
			payload := map[string]interface{}{"title": title}
			if content != "" {
				payload["content"] = content
			}
			if status != "" {
				payload["status"] = status
			}
			data, err := do(newClient().R().SetBody(payload), http.MethodPost, "/memoir")
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintln(os.Stdout, string(data))
			return nil
		},
	}
	createCmd.Flags().StringVarP(&title, "title", "T", "", "Title (required)")
	createCmd.Flags().StringVarP(&content, "content", "c", "", "Free-text content")
	createCmd.Flags().StringVarP(&status, "status", "s", "", "Status (draft|submitted|published)")
	_ = createCmd.MarkFlagRequired("title")
	memoirsCmd.AddCommand(createCmd)

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List memoirs you authored",
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := do(newClient().R(), http.MethodGet, "/memoir")
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintln(os.Stdout, string(data))
			return nil
		},
	}
	memoirsCmd.AddCommand(listCmd)

	getCmd := &cobra.Command{
		Use:   "get MEMOIR_ID",
		Short: "Get a memoir by ID",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := do(newClient().R(), http.MethodGet, "/memoir/"+args[0])
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintln(os.Stdout, string(data))
			return nil
		},
	}
	memoirsCmd.AddCommand(getCmd)

	var patchJSON string
	updateCmd := &cobra.Command{
		Use:   "update MEMOIR_ID",
		Short: "Apply a partial update from a JSON document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var patch map[string]interface{}
			if err := json.Unmarshal([]byte(patchJSON), &patch); err != nil {
				return fmt.Errorf("invalid --patch JSON: %w", err)
			}
			data, err := do(newClient().R().SetBody(patch), http.MethodPut, "/memoir/"+args[0])
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintln(os.Stdout, string(data))
			return nil
		},
	}
	updateCmd.Flags().StringVarP(&patchJSON, "patch", "p", "", "JSON object of fields to change (required)")
	_ = updateCmd.MarkFlagRequired("patch")
	memoirsCmd.AddCommand(updateCmd)

	deleteCmd := &cobra.Command{
		Use:   "delete MEMOIR_ID",
		Short: "Delete a memoir",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := do(newClient().R(), http.MethodDelete, "/memoir/"+args[0])
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintln(os.Stdout, string(data))
			return nil
		},
	}
	memoirsCmd.AddCommand(deleteCmd)

	rootCmd.AddCommand(memoirsCmd)
}
