package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"recivo/internal/relay"
	"recivo/internal/speech"
)

var (
	speakText   string
	speakVoice  string
	speakFormat string
	speakOut    string
)

var voicesCmd = &cobra.Command{
	Use:   "voices",
	Short: "Показать каталог голосов провайдера",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		a, logger, err := setup()
		if err != nil {
			return err
		}
		defer logger.Sync()

		if err := a.Voices.Refresh(cmd.Context()); err != nil {
			return err
		}

		list, _, err := a.Voices.List()
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "VOICE ID\tNAME\tLOCALE\tGENDER")
		for _, v := range list {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", v.ID, v.DisplayName, v.Locale, v.Gender)
		}
		if err := w.Flush(); err != nil {
			return err
		}

		fmt.Fprintf(cmd.ErrOrStderr(), "всего голосов: %s\n", humanize.Comma(int64(len(list))))
		return nil
	},
}

var speakCmd = &cobra.Command{
	Use:     "speak",
	Short:   "Синтезировать речь и вывести ссылку на аудио",
	Example: "recivoctl speak --voice en-US-claire --text \"Hello\" --out hello.mp3",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		a, logger, err := setup()
		if err != nil {
			return err
		}
		defer logger.Sync()

		out, err := a.Speech.Speak(cmd.Context(), speech.Request{
			Text:    speakText,
			VoiceID: speakVoice,
			Format:  speakFormat,
		})
		if err != nil {
			return err
		}

		switch out.Status {
		case speech.StatusPending:
			fmt.Fprintf(cmd.OutOrStdout(), "задача %s еще не готова, проверьте позже: recivoctl status %s\n", out.JobID, out.JobID)
			return nil
		case speech.StatusFailed:
			return fmt.Errorf("синтез не удался (%s): %s", out.Failure, out.Detail)
		}

		if speakOut == "" {
			fmt.Fprintln(cmd.OutOrStdout(), out.AudioURL)
			return nil
		}

		return download(cmd, a.Relay, out.AudioURL, speakOut)
	},
}

var statusCmd = &cobra.Command{
	Use:   "status JOB_ID",
	Short: "Проверить статус асинхронной задачи",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, logger, err := setup()
		if err != nil {
			return err
		}
		defer logger.Sync()

		out, err := a.Speech.Status(cmd.Context(), args[0])
		if errors.Is(err, speech.ErrJobNotFound) {
			return fmt.Errorf("задача %s не найдена", args[0])
		}
		if err != nil {
			return err
		}

		if out.Status == speech.StatusReady {
			fmt.Fprintln(cmd.OutOrStdout(), out.AudioURL)
			return nil
		}
		fmt.Fprintf(cmd.OutOrStdout(), "задача %s: %s\n", out.JobID, out.Status)
		return nil
	},
}

func init() {
	speakCmd.Flags().StringVarP(&speakText, "text", "t", "", "текст для синтеза")
	speakCmd.Flags().StringVar(&speakVoice, "voice", "", "идентификатор голоса")
	speakCmd.Flags().StringVar(&speakFormat, "format", "", "формат аудио (по умолчанию MURF_DEFAULT_FORMAT)")
	speakCmd.Flags().StringVarP(&speakOut, "out", "o", "", "сохранить аудио в файл")
	_ = speakCmd.MarkFlagRequired("text")
	_ = speakCmd.MarkFlagRequired("voice")
}

// download сохраняет аудио по ссылке в файл
func download(cmd *cobra.Command, rl *relay.Relay, ref, path string) error {
	stream, err := rl.Open(cmd.Context(), ref)
	if err != nil {
		return err
	}
	defer stream.Body.Close()

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("ошибка создания файла: %w", err)
	}

	n, err := io.Copy(f, stream.Body)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return fmt.Errorf("ошибка записи аудио: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "%s: %s (%s)\n", path, humanize.Bytes(uint64(n)), stream.ContentType)
	return nil
}
