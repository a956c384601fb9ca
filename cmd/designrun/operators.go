package main

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/entrhq/designrun/pkg/logging"
	"github.com/entrhq/designrun/pkg/operator"
	"github.com/entrhq/designrun/pkg/run"
)

func cmdRunGPT(args []string) error {
	fs := newFlagSet("run-gpt")
	var common commonFlags
	var bf browserFlags
	addCommonFlags(fs, &common)
	addBrowserFlags(fs, &bf)
	urlFlag := fs.String("url", "", "Chat URL (default: run's recorded chat, then config)")
	useAPI := fs.Bool("api", false, "Use the completions API instead of a browser")
	loginWaitS := fs.Int("login-wait-s", 0, "Seconds to wait for manual sign-in when a login wall appears")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	if err := requireRunAndStep(&common); err != nil {
		return err
	}

	cfg, mgr, err := loadEnv(&common)
	if err != nil {
		return err
	}
	logger, err := logging.NewLogger("gpt")
	if err != nil {
		return err
	}
	defer logger.Close()

	userText, err := stepUserText(mgr, common.runID, common.stepID)
	if err != nil {
		return err
	}
	mode, err := resolveMode(mgr, common.runID, common.stepID, run.ModeDNA, run.ModeVariations, run.ModeFeedback)
	if err != nil {
		return err
	}
	images, err := mgr.ReferenceImages(common.runID, common.stepID)
	if err != nil {
		return err
	}

	prompt := buildAnalysisPrompt(mode, userText, len(images))
	gptDir := filepath.Join(mgr.StepDir(common.runID, common.stepID), "gpt")

	var result *operator.GPTResult
	if *useAPI {
		analyzer, err := operator.NewAPIAnalyzer(cfg.APIKey(), cfg.OpenAI.Model, logger)
		if err != nil {
			return err
		}
		result, err = analyzer.AnalyzeWithTimeout(prompt, images, gptDir, bf.timeout())
		if err != nil {
			return err
		}
	} else {
		manifest, err := run.ReadManifest(mgr.RunDir(common.runID))
		if err != nil {
			return err
		}
		url := firstNonEmpty(*urlFlag, manifest.ChatURL, cfg.ChatGPTURL)

		manager, sess, err := openSession(cfg, &bf, url)
		if err != nil {
			return err
		}
		defer manager.Shutdown()

		op := operator.NewGPTOperator(logger)
		result, err = op.Run(sess, operator.GPTOptions{
			Prompt:    prompt,
			Images:    images,
			OutDir:    gptDir,
			Timeout:   bf.timeout(),
			LoginWait: time.Duration(*loginWaitS) * time.Second,
		})
		if err != nil {
			return err
		}
		if result.ChatURL != "" {
			if err := run.UpdateManifest(mgr.RunDir(common.runID), func(m *run.Manifest) {
				m.ChatURL = result.ChatURL
			}); err != nil {
				return err
			}
		}
	}

	if err := run.NormalizeGPTOutput(gptDir); err != nil {
		return err
	}
	if err := run.AppendEvent(mgr.RunDir(common.runID), "gpt_completed", map[string]interface{}{
		"step_id":        common.stepID,
		"blocks_count":   result.BlocksCount,
		"extracted_keys": result.ExtractedKeys,
	}); err != nil {
		return err
	}
	return printJSON(result)
}

func cmdReexportGPT(args []string) error {
	fs := newFlagSet("reexport-gpt")
	var common commonFlags
	var bf browserFlags
	addCommonFlags(fs, &common)
	addBrowserFlags(fs, &bf)
	urlFlag := fs.String("url", "", "Chat URL (default: run's recorded chat)")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	if err := requireRunAndStep(&common); err != nil {
		return err
	}

	cfg, mgr, err := loadEnv(&common)
	if err != nil {
		return err
	}
	manifest, err := run.ReadManifest(mgr.RunDir(common.runID))
	if err != nil {
		return err
	}
	url := firstNonEmpty(*urlFlag, manifest.ChatURL)
	if url == "" {
		return fmt.Errorf("no chat URL recorded for this run; pass -url")
	}

	logger, err := logging.NewLogger("gpt")
	if err != nil {
		return err
	}
	defer logger.Close()

	manager, sess, err := openSession(cfg, &bf, url)
	if err != nil {
		return err
	}
	defer manager.Shutdown()

	gptDir := filepath.Join(mgr.StepDir(common.runID, common.stepID), "gpt")
	op := operator.NewGPTOperator(logger)
	result, err := op.ReExport(sess, gptDir)
	if err != nil {
		return err
	}
	if err := run.NormalizeGPTOutput(gptDir); err != nil {
		return err
	}
	if err := run.AppendEvent(mgr.RunDir(common.runID), "gpt_reexported", map[string]interface{}{
		"step_id":      common.stepID,
		"blocks_count": result.BlocksCount,
	}); err != nil {
		return err
	}
	return printJSON(result)
}

func cmdRunAura(args []string) error {
	fs := newFlagSet("run-aura")
	var common commonFlags
	var bf browserFlags
	addCommonFlags(fs, &common)
	addBrowserFlags(fs, &bf)
	urlFlag := fs.String("url", "", "Editor URL (DNA: start page, FEEDBACK: project)")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	if err := requireRunAndStep(&common); err != nil {
		return err
	}

	cfg, mgr, err := loadEnv(&common)
	if err != nil {
		return err
	}
	mode, err := resolveMode(mgr, common.runID, common.stepID, run.ModeDNA, run.ModeFeedback)
	if err != nil {
		return err
	}
	manifest, err := run.ReadManifest(mgr.RunDir(common.runID))
	if err != nil {
		return err
	}

	var auraMode operator.AuraMode
	var url, prompt string
	userText, userErr := stepUserText(mgr, common.runID, common.stepID)
	if mode == run.ModeDNA {
		auraMode = operator.AuraModeDNA
		url = firstNonEmpty(*urlFlag, cfg.AuraStartURL)
		prompt = firstNonEmpty(stepOutput(mgr, common.runID, common.stepID, "aura_dna.txt"), userText)
	} else {
		auraMode = operator.AuraModeFeedback
		url = firstNonEmpty(manifest.AuraProjectURL, *urlFlag)
		if url == "" {
			return fmt.Errorf("no project URL recorded for this run; pass -url or run a DNA step first")
		}
		prompt = firstNonEmpty(stepOutput(mgr, common.runID, common.stepID, "aura_edit.txt"), userText)
	}
	if prompt == "" {
		if userErr != nil {
			return userErr
		}
		return fmt.Errorf("no prompt available: no analysis output and empty brief")
	}

	images, err := mgr.ReferenceImages(common.runID, common.stepID)
	if err != nil {
		return err
	}

	logger, err := logging.NewLogger("aura")
	if err != nil {
		return err
	}
	defer logger.Close()

	manager, sess, err := openSession(cfg, &bf, url)
	if err != nil {
		return err
	}
	defer manager.Shutdown()

	op := operator.NewAuraOperator(logger)
	result, err := op.Run(sess, operator.AuraOptions{
		Mode:    auraMode,
		Prompt:  prompt,
		Images:  images,
		OutDir:  filepath.Join(mgr.StepDir(common.runID, common.stepID), "generators", "aura"),
		Timeout: bf.timeout(),
	})
	if err != nil {
		return err
	}

	if auraMode == operator.AuraModeDNA && result.ProjectURL != "" {
		if err := run.UpdateManifest(mgr.RunDir(common.runID), func(m *run.Manifest) {
			m.AuraProjectURL = result.ProjectURL
		}); err != nil {
			return err
		}
	}
	if err := run.AppendEvent(mgr.RunDir(common.runID), "aura_completed", map[string]interface{}{
		"step_id":     common.stepID,
		"mode":        string(result.Mode),
		"project_url": result.ProjectURL,
	}); err != nil {
		return err
	}
	return printJSON(result)
}

func cmdRunVariant(args []string) error {
	fs := newFlagSet("run-variant")
	var common commonFlags
	var bf browserFlags
	addCommonFlags(fs, &common)
	addBrowserFlags(fs, &bf)
	urlFlag := fs.String("url", "", "Generator start URL (default from config)")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	if err := requireRunAndStep(&common); err != nil {
		return err
	}

	cfg, mgr, err := loadEnv(&common)
	if err != nil {
		return err
	}
	if _, err := resolveMode(mgr, common.runID, common.stepID, run.ModeVariations); err != nil {
		return err
	}

	userText, userErr := stepUserText(mgr, common.runID, common.stepID)
	prompt := firstNonEmpty(stepOutput(mgr, common.runID, common.stepID, "variant_prompt.txt"), userText)
	if prompt == "" {
		if userErr != nil {
			return userErr
		}
		return fmt.Errorf("no prompt available: no analysis output and empty brief")
	}
	images, err := mgr.ReferenceImages(common.runID, common.stepID)
	if err != nil {
		return err
	}

	logger, err := logging.NewLogger("variant")
	if err != nil {
		return err
	}
	defer logger.Close()

	url := firstNonEmpty(*urlFlag, cfg.VariantStartURL)
	manager, sess, err := openSession(cfg, &bf, url)
	if err != nil {
		return err
	}
	defer manager.Shutdown()

	op := operator.NewVariantOperator(logger)
	result, err := op.Run(sess, operator.VariantOptions{
		Prompt:   prompt,
		Images:   images,
		OutDir:   filepath.Join(mgr.StepDir(common.runID, common.stepID), "generators", "variant"),
		StartURL: url,
		Timeout:  bf.timeout(),
	})
	if err != nil {
		return err
	}

	if result.ProjectURL != "" {
		if err := run.UpdateManifest(mgr.RunDir(common.runID), func(m *run.Manifest) {
			m.VariantProjectURL = result.ProjectURL
		}); err != nil {
			return err
		}
	}
	if err := run.AppendEvent(mgr.RunDir(common.runID), "variant_completed", map[string]interface{}{
		"step_id":     common.stepID,
		"project_url": result.ProjectURL,
		"version_ids": result.VersionIDs,
	}); err != nil {
		return err
	}
	return printJSON(result)
}

func cmdExportVariant(args []string) error {
	fs := newFlagSet("export-variant")
	var common commonFlags
	var bf browserFlags
	addCommonFlags(fs, &common)
	addBrowserFlags(fs, &bf)
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	if err := requireRunAndStep(&common); err != nil {
		return err
	}

	cfg, mgr, err := loadEnv(&common)
	if err != nil {
		return err
	}
	manifest, err := run.ReadManifest(mgr.RunDir(common.runID))
	if err != nil {
		return err
	}
	// Shared pages are public; the project URL is just a sane landing
	// spot before the per-variant navigation starts.
	url := firstNonEmpty(manifest.VariantProjectURL, cfg.VariantStartURL)

	logger, err := logging.NewLogger("variant")
	if err != nil {
		return err
	}
	defer logger.Close()

	manager, sess, err := openSession(cfg, &bf, url)
	if err != nil {
		return err
	}
	defer manager.Shutdown()

	op := operator.NewVariantOperator(logger)
	result, err := op.ReExport(sess, filepath.Join(mgr.StepDir(common.runID, common.stepID), "generators", "variant"))
	if err != nil {
		return err
	}
	if err := run.AppendEvent(mgr.RunDir(common.runID), "variant_reexported", map[string]interface{}{
		"step_id":     common.stepID,
		"version_ids": result.VersionIDs,
	}); err != nil {
		return err
	}
	return printJSON(result)
}
