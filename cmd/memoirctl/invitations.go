package main

import (
	"fmt"
	"net/http"
	"os"

	"github.com/spf13/cobra"
)

func init() {
	invitationsCmd := &cobra.Command{Use: "invitations", Short: "Collaborator invitation operations"}

	var email, role string
	inviteCmd := &cobra.Command{
		Use:   "invite MEMOIR_ID",
		Short: "Invite a collaborator by email",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			payload := map[string]string{"email": email, "role": role}
			data, err := do(newClient().R().SetBody(payload), http.MethodPost, "/memoir/"+args[0]+"/collaborators")
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintln(os.Stdout, string(data))
			return nil
		},
	}
	inviteCmd.Flags().StringVarP(&email, "email", "e", "", "Invitee email (required)")
	inviteCmd.Flags().StringVarP(&role, "role", "r", "viewer", "Role to grant (viewer|editor|validator)")
	_ = inviteCmd.MarkFlagRequired("email")
	invitationsCmd.AddCommand(inviteCmd)

	var token string
	var decline bool
	respondCmd := &cobra.Command{
		Use:   "respond MEMOIR_ID",
		Short: "Accept or decline an invitation using its token",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			payload := map[string]interface{}{"token": token, "accepted": !decline}
			data, err := do(newClient().R().SetBody(payload), http.MethodPost, "/memoir/"+args[0]+"/collaborators/respond")
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintln(os.Stdout, string(data))
			return nil
		},
	}
	respondCmd.Flags().StringVarP(&token, "invite-token", "k", "", "Invitation token from the email (required)")
	respondCmd.Flags().BoolVarP(&decline, "decline", "d", false, "Decline instead of accept")
	_ = respondCmd.MarkFlagRequired("invite-token")
	invitationsCmd.AddCommand(respondCmd)

	rootCmd.AddCommand(invitationsCmd)
}
