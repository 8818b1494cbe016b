package cmd

import (
	"fmt"
	"strings"

	"github.com/alohalabs/aloha/pkg/a2a"
	"github.com/alohalabs/aloha/pkg/client"
	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
)

var (
	agentURLFlag string
	taskIDFlag   string

	clientCmd = &cobra.Command{
		Use:   "client",
		Short: "A2A client operations",
		Long:  `Run client operations against a running A2A agent`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	cardCmd = &cobra.Command{
		Use:   "card",
		Short: "Fetch and display the agent card",
		RunE: func(cmd *cobra.Command, args []string) error {
			card, err := client.NewClient(agentURLFlag).FetchAgentCard()
			if err != nil {
				return err
			}

			fmt.Println(card)
			return nil
		},
	}

	sendCmd = &cobra.Command{
		Use:   "send [text]",
		Short: "Send a message and wait for the task to finish",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			message := a2a.NewTextMessage(a2a.RoleUser, strings.Join(args, " "))
			message.TaskID = taskIDFlag

			task, err := client.NewClient(agentURLFlag).SendMessage(message)
			if err != nil {
				return err
			}

			fmt.Println(task)
			return nil
		},
	}

	streamCmd = &cobra.Command{
		Use:   "stream [text]",
		Short: "Send a message and stream task events as they happen",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			message := a2a.NewTextMessage(a2a.RoleUser, strings.Join(args, " "))
			message.TaskID = taskIDFlag

			events, err := client.NewClient(agentURLFlag).StreamMessage(
				cmd.Context(), message,
			)
			if err != nil {
				return err
			}

			for event := range events {
				switch {
				case event.Task != nil:
					log.Info("task created", "task_id", event.Task.ID)
				case event.Status != nil:
					log.Info("status update",
						"task_id", event.Status.ID,
						"state", event.Status.Status.State,
						"final", event.Status.Final,
					)
					if msg := event.Status.Status.Message; msg != nil {
						fmt.Println(msg.Text())
					}
				case event.Artifact != nil:
					fmt.Println(event.Artifact.Artifact.Text())
				}
			}

			return nil
		},
	}

	getCmd = &cobra.Command{
		Use:   "get [task-id]",
		Short: "Fetch a task by id",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			task, err := client.NewClient(agentURLFlag).GetTask(args[0])
			if err != nil {
				return err
			}

			fmt.Println(task)
			return nil
		},
	}

	cancelCmd = &cobra.Command{
		Use:   "cancel [task-id]",
		Short: "Cancel a running task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			task, err := client.NewClient(agentURLFlag).CancelTask(args[0])
			if err != nil {
				return err
			}

			fmt.Println(task)
			return nil
		},
	}
)

func init() {
	rootCmd.AddCommand(clientCmd)
	clientCmd.AddCommand(cardCmd, sendCmd, streamCmd, getCmd, cancelCmd)

	clientCmd.PersistentFlags().StringVarP(
		&agentURLFlag, "url", "u", "http://localhost:8080", "Base URL of the agent",
	)
	sendCmd.Flags().StringVar(&taskIDFlag, "task", "", "Continue an existing task")
	streamCmd.Flags().StringVar(&taskIDFlag, "task", "", "Continue an existing task")
}
