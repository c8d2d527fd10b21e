package main

import (
	"fmt"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/jdeinum/simulation-testing/internal/seed"
	"github.com/jdeinum/simulation-testing/internal/transport"
)

var demoMessages = [][2]string{
	{"Alice", "First message"},
	{"Bob", "Second message"},
	{"Charlie", "Third message"},
	{"David", "Fourth message"},
	{"Eve", "Fifth message"},
}

var demoCmd = &cobra.Command{
	Use:   "demo",
	Short: "Show how the seed decides whether queued messages are shuffled",
	RunE: func(cmd *cobra.Command, args []string) error {
		seeds, _ := cmd.Flags().GetUintSlice("seed")
		for i, s := range seeds {
			if i > 0 {
				pterm.Println()
			}
			if err := demoShuffle(uint64(s)); err != nil {
				return err
			}
		}
		return nil
	},
}

func demoShuffle(s uint64) error {
	pterm.DefaultSection.Printfln("Seed %d", s)

	q := transport.NewReorderer(seed.New(s), seed.Default)
	injected := [][]string{{"#", "From", "Message"}}
	for i, m := range demoMessages {
		q.Inject(m[0], []byte(m[1]))
		injected = append(injected, []string{fmt.Sprint(i + 1), m[0], m[1]})
	}

	received := [][]string{{"#", "From", "Message"}}
	for i, msg := range q.Drain() {
		received = append(received, []string{fmt.Sprint(i + 1), msg.From, string(msg.Payload)})
	}

	injectedTable, err := pterm.DefaultTable.WithHasHeader().WithData(injected).Srender()
	if err != nil {
		return err
	}
	receivedTable, err := pterm.DefaultTable.WithHasHeader().WithData(received).Srender()
	if err != nil {
		return err
	}
	box := pterm.DefaultBox.WithHorizontalPadding(2)
	err = pterm.DefaultPanel.WithPanels([][]pterm.Panel{{
		{Data: box.WithTitle(pterm.LightCyan("Injected")).Sprint(injectedTable)},
		{Data: box.WithTitle(pterm.LightGreen("Received")).Sprint(receivedTable)},
	}}).Render()
	if err != nil {
		return err
	}

	if q.Reorders() {
		pterm.Success.Printfln("Messages were shuffled (seed %d is divisible by 10)", s)
	} else {
		pterm.Success.Printfln("Message order preserved (seed %d is not divisible by 10)", s)
	}
	return nil
}
