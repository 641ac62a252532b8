package main

import (
	"bufio"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/haolipeng/nft_payload_classifier/pkg/classifier"
	"github.com/haolipeng/nft_payload_classifier/pkg/corpus"
	"github.com/haolipeng/nft_payload_classifier/pkg/ruleEngine"
)

const defaultRulePath = "rules"

func newClassifyCmd() *cobra.Command {
	var rulePath string
	cmd := &cobra.Command{
		Use:   "classify [HEX...]",
		Short: "对十六进制载荷分类，没有参数时从标准输入逐行读取",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := classifier.NewPacketClassifierFromPath(rulePath)
			if err != nil {
				return err
			}

			payloads := args
			if len(payloads) == 0 {
				scanner := bufio.NewScanner(cmd.InOrStdin())
				for scanner.Scan() {
					line := strings.TrimSpace(scanner.Text())
					if line != "" && !strings.HasPrefix(line, "#") {
						payloads = append(payloads, line)
					}
				}
				if err := scanner.Err(); err != nil {
					return err
				}
			}

			out := cmd.OutOrStdout()
			for _, p := range payloads {
				raw, err := classifier.DecodeHexPayload(p)
				if err != nil {
					return fmt.Errorf("%q: %w", p, err)
				}
				rule, ok := c.Match(raw)
				if ok {
					fmt.Fprintf(out, "accept\t%s\t%s\n", rule.Name(), p)
				} else {
					fmt.Fprintf(out, "reject\t-\t%s\n", p)
				}
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&rulePath, "rules", "r", defaultRulePath, "规则文件或规则目录")
	return cmd
}

func newCheckCmd() *cobra.Command {
	var rulePath string
	cmd := &cobra.Command{
		Use:   "check",
		Short: "解析规则并输出摘要",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rs, err := ruleEngine.LoadRuleSet(rulePath)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s: %d rules, %d clauses\n", rs.Source, rs.Len(), rs.ClauseCount())
			for i := range rs.Rules {
				rule := &rs.Rules[i]
				fmt.Fprintf(out, "  line %d\t%s\tmin_len=%d\t%s\n", rule.Line, rule.Name(), rule.MinPayloadLen(), rule.String())
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&rulePath, "rules", "r", defaultRulePath, "规则文件或规则目录")
	return cmd
}

func newVerifyCmd() *cobra.Command {
	var rulePath string
	cmd := &cobra.Command{
		Use:   "verify CORPUS",
		Short: "使用带标注的样本校验规则",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := classifier.NewPacketClassifierFromPath(rulePath)
			if err != nil {
				return err
			}
			samples, err := corpus.Load(args[0])
			if err != nil {
				return err
			}

			report := corpus.Verify(c, samples)
			out := cmd.OutOrStdout()
			for _, f := range report.Failures {
				got := corpus.ExpectReject
				if f.Accepted {
					got = corpus.ExpectAccept
				}
				fmt.Fprintf(out, "FAIL\t%s\texpect=%s got=%s\n", f.Entry.Name, f.Entry.Expect, got)
			}
			fmt.Fprintln(out, report.String())

			if !report.OK() {
				return fmt.Errorf("%d of %d samples failed", len(report.Failures), len(report.Results))
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&rulePath, "rules", "r", defaultRulePath, "规则文件或规则目录")
	return cmd
}
